package commands

import (
	"github.com/spf13/cobra"

	"github.com/lampctl/lampctl/pkg/engine"
)

func newCreateSiteCommand() *cobra.Command {
	var (
		dryRun        bool
		autoApprove   bool
		noDatabase    bool
		autoProvision bool
	)

	cmd := &cobra.Command{
		Use:   "create-site <name> <php-version>",
		Short: "Create a site with vhost, document root and database",
		Long: `Create a site as one transaction: document root, Apache virtual host,
web server reload and a dedicated MariaDB database with its own user. The
generated database password is shown once on success and stored nowhere.

Fails up front when the stack is not installed; pass --auto-provision to
have the missing stack installed as part of the same plan.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := a.planner.BuildPlan(cmd.Context(), engine.Intent{
				Kind:          engine.IntentCreateSite,
				SiteName:      args[0],
				PHPVersion:    args[1],
				WithDatabase:  !noDatabase,
				AutoProvision: autoProvision,
			})
			if err != nil {
				return err
			}
			return a.runPlan(cmd.Context(), plan, dryRun, autoApprove)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview the plan without changing the system")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&noDatabase, "skip-db", false, "skip database and user creation")
	cmd.Flags().BoolVar(&autoProvision, "auto-provision", false, "install the stack first when it is missing")

	return cmd
}
