package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadyard/internal/config"
	"github.com/zulandar/leadyard/internal/db"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// seedFile is the fixture format accepted by --seed.
type seedFile struct {
	Profiles []db.SeedProfile `yaml:"profiles"`
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath, seedPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Leadyard database",
		Long: `Creates the database (mysql), migrates all tables and optionally seeds
profiles from a YAML fixture for local development.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, seedPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Leadyard config file")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML fixture with profiles to upsert")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath, seedPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %s config from %s\n", cfg.Env, configPath)

	seed, err := readSeedFile(seedPath)
	if err != nil {
		return err
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to mysql at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Open(cfg.Database, false)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	if err := migrateAndSeed(out, gormDB, seed); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nLeadyard database initialized successfully.")
	return nil
}

func migrateAndSeed(out io.Writer, gormDB *gorm.DB, seed *seedFile) error {
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if seed == nil {
		return nil
	}
	if err := db.SeedProfiles(gormDB, seed.Profiles); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d profiles\n", len(seed.Profiles))
	return nil
}

func readSeedFile(path string) (*seedFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, p := range sf.Profiles {
		if p.ID == "" || p.Role == "" {
			return nil, fmt.Errorf("seed file %s: profile %d needs id and role", path, i)
		}
	}
	return &sf, nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		seedPath   string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Leadyard database",
		Long: `Drops every Leadyard table (sqlite) or the whole database (mysql) and
re-creates it from config. Refuses to run against a production config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, seedPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Leadyard config file")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML fixture with profiles to upsert")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath, seedPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Production() {
		return fmt.Errorf("refusing to reset a production database")
	}
	seed, err := readSeedFile(seedPath)
	if err != nil {
		return err
	}

	target := describeDB(cfg.Database)
	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	gormDB, err := dropStore(cfg.Database)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped %s\n", target)

	if err := migrateAndSeed(out, gormDB, seed); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nLeadyard database reset and re-initialized successfully.")
	return nil
}

// dropStore empties the configured store and returns a connection to the
// fresh one.
func dropStore(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to mysql at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		if err := db.DropDatabase(adminDB, cfg.Name); err != nil {
			return nil, err
		}
		if err := db.CreateDatabase(adminDB, cfg.Name); err != nil {
			return nil, err
		}
	}

	gormDB, err := db.Open(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", describeDB(cfg), err)
	}
	if cfg.Driver == "sqlite" {
		if err := gormDB.Migrator().DropTable(db.AllModels()...); err != nil {
			return nil, fmt.Errorf("drop tables: %w", err)
		}
	}
	return gormDB, nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %s.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
