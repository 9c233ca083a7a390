package commands

import (
	"github.com/spf13/cobra"

	"github.com/lampctl/lampctl/pkg/engine"
)

func newInstallStackCommand() *cobra.Command {
	var (
		dryRun      bool
		autoApprove bool
	)

	cmd := &cobra.Command{
		Use:   "install-stack <php-version>",
		Short: "Install Apache, MariaDB and PHP",
		Long: `Install the web server, database server and a PHP interpreter as one
transaction. Packages that are already installed are skipped. The service
restart at the end cannot be undone; everything before it can.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := a.planner.BuildPlan(cmd.Context(), engine.Intent{
				Kind:       engine.IntentInstallStack,
				PHPVersion: args[0],
			})
			if err != nil {
				return err
			}
			return a.runPlan(cmd.Context(), plan, dryRun, autoApprove)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview the plan without changing the system")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
