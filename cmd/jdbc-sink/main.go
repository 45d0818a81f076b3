package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/registry"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/drivers"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/loader"
	"github.com/hasnat/kafka-connect-jdbc/pkg/json"

	// Register the connectors
	_ "github.com/hasnat/kafka-connect-jdbc/pkg/connector/destinations/jdbc"
	_ "github.com/hasnat/kafka-connect-jdbc/pkg/connector/sources/kafka"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jdbc-sink",
		Short: "Stream Kafka topics into a relational database",
		Long: `jdbc-sink consumes records from Kafka topics and inserts them into a database
table through database/sql, batching records of the same shape into one
prepared statement.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newVersionCmd(),
		newConnectorsCmd(),
		newDriversCmd(),
		newConfigCmd(),
		newValidateCmd(),
		newFieldsCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jdbc-sink v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConnectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connectors",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available Source Connectors:")
			for _, source := range registry.ListSources() {
				fmt.Fprintf(out, "  - %s\n", source)
			}
			fmt.Fprintln(out, "\nAvailable Destination Connectors:")
			for _, dest := range registry.ListDestinations() {
				fmt.Fprintf(out, "  - %s\n", dest)
			}
		},
	}
}

func newDriversCmd() *cobra.Command {
	var artifact, class string

	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List database drivers, optionally loading one from a plugin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifact != "" {
				ok, err := loader.Load(class, artifact)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "driver %s was not loaded, see logs\n", class)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DRIVER\tORIGIN")
			for _, name := range drivers.Registered() {
				origin := "linked"
				if drivers.IsBuiltIn(name) {
					origin = "built-in"
				} else if d, ok := loader.Lookup(name); ok {
					origin = "plugin " + d.Artifact()
				}
				fmt.Fprintf(w, "%s\t%s\n", name, origin)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&artifact, "artifact", "", "Plugin file to load a driver from")
	cmd.Flags().StringVar(&class, "class", "", "Driver name exported by the plugin")
	cmd.MarkFlagsRequiredTogether("artifact", "class")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(config.NewConfig("jdbc-sink"))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid\n", cfg.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newFieldsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fields <mapping>",
		Short: "Parse a field mapping such as \"*,customer=customer_name\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := config.ParseFields(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(fields, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "include all fields:\t%t\n", fields.IncludeAll)
			fmt.Fprintln(w, "FIELD\tCOLUMN")
			for _, m := range fields.Mappings {
				fmt.Fprintf(w, "%s\t%s\n", m.Field, m.Alias)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the parsed mapping as JSON")
	return cmd
}
