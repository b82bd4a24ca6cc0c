package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/turtacn/certgate/cmd/cli.Version=...".
var Version = "dev"

var configFile string

// rootCmd represents the base command when the `certgate` binary is called without any subcommands.
// rootCmd 代表在没有任何子命令的情况下调用 `certgate` 时的基本命令。
var rootCmd = &cobra.Command{
	Use:   "certgate",
	Short: "HTTP gateway for an easy-rsa certificate authority.",
	Long: `certgate exposes an easy-rsa based certificate authority over an authenticated
HTTP API: CA creation, certificate issuance, renewal, revocation, CSR signing
and downloads, all executed through the allow-listed cert-manager-api tool.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: /etc/certgate/certgate.yaml or ./certgate.yaml)")
	rootCmd.AddCommand(newServeCmd(), newHashPasswordCmd(), newVersionCmd())
}

// Execute is the main entry point for the CLI application.
// It parses the command-line arguments and runs the selected command,
// exiting with status 1 on error.
// Execute 是 CLI 应用程序的主入口点。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
