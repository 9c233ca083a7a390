package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lampctl/lampctl/pkg/vhost"
)

// PlanBuilder turns an intent into an ordered, rollback-annotated plan. It
// is pure with respect to system state: it reads current state through the
// command runner to decide what is needed, but performs no mutation.
type PlanBuilder struct {
	settings Settings
	runner   CommandRunner
}

// NewPlanBuilder creates a plan builder.
func NewPlanBuilder(settings Settings, runner CommandRunner) *PlanBuilder {
	return &PlanBuilder{settings: settings, runner: runner}
}

// BuildPlan constructs the plan for an intent. For create-site intents with
// a database it also generates the credential; the plan owns it until the
// caller takes it over.
func (b *PlanBuilder) BuildPlan(ctx context.Context, intent Intent) (*Plan, error) {
	if err := b.checkPHPVersion(intent.PHPVersion); err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		Intent:    intent,
		CreatedAt: time.Now().UTC(),
	}

	switch intent.Kind {
	case IntentInstallStack:
		if err := b.appendStackOperations(ctx, plan, intent.PHPVersion); err != nil {
			return nil, err
		}
	case IntentCreateSite:
		if err := b.appendSiteOperations(ctx, plan, intent); err != nil {
			return nil, err
		}
	default:
		return nil, NewDependencyError(fmt.Sprintf("unknown intent kind %q", intent.Kind), nil)
	}

	for i := range plan.Operations {
		if err := plan.Operations[i].Validate(); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (b *PlanBuilder) checkPHPVersion(version string) error {
	for _, v := range b.settings.SupportedPHPVersions {
		if v == version {
			return nil
		}
	}
	return NewValidationError(
		fmt.Sprintf("PHP version %q is not supported (supported: %s)",
			version, strings.Join(b.settings.SupportedPHPVersions, ", ")),
		nil).WithCode(ErrCodeUnsupportedVersion)
}

// stackPackages expands the full package list for a PHP version.
func (b *PlanBuilder) stackPackages(phpVersion string) []string {
	pkgs := make([]string, 0, len(b.settings.StackPackages)+len(b.settings.PHPPackages))
	pkgs = append(pkgs, b.settings.StackPackages...)
	for _, tmpl := range b.settings.PHPPackages {
		pkgs = append(pkgs, fmt.Sprintf(tmpl, phpVersion))
	}
	return pkgs
}

// packageInstalled probes dpkg for an installed package. Read-only.
func (b *PlanBuilder) packageInstalled(ctx context.Context, name string) (bool, error) {
	res, err := b.runner.Run(ctx, "dpkg-query", "-W", "-f=${Status}", name)
	if err != nil {
		return false, fmt.Errorf("failed to query package %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return false, nil
	}
	return strings.Contains(res.Stdout, "install ok installed"), nil
}

// appendStackOperations emits one package operation per missing package,
// ordered before the web-server restart. Already-installed packages are
// skipped rather than re-emitted.
func (b *PlanBuilder) appendStackOperations(ctx context.Context, plan *Plan, phpVersion string) error {
	timeout := b.settings.OperationTimeout
	for _, pkg := range b.stackPackages(phpVersion) {
		installed, err := b.packageInstalled(ctx, pkg)
		if err != nil {
			return err
		}
		plan.Expected.Packages = append(plan.Expected.Packages, pkg)
		if installed {
			continue
		}
		inverse := AptRemoveEffect(pkg)
		plan.Operations = append(plan.Operations, Operation{
			ID:          "pkg-" + pkg,
			Kind:        KindPackage,
			Target:      pkg,
			Description: "install package " + pkg,
			Forward:     AptInstallEffect(pkg),
			Inverse:     &inverse,
			Idempotent:  true,
			Timeout:     timeout,
		})
	}

	svc := b.settings.WebServerService
	plan.Expected.Services = append(plan.Expected.Services, svc, b.settings.DatabaseService)
	plan.Operations = append(plan.Operations, Operation{
		ID:           "restart-" + svc,
		Kind:         KindService,
		Target:       svc,
		Description:  "restart service " + svc,
		Forward:      SystemctlEffect("restart", svc),
		Irreversible: true,
		Timeout:      timeout,
	})
	return nil
}

// stackPresent reports whether the base stack packages are installed.
func (b *PlanBuilder) stackPresent(ctx context.Context, phpVersion string) (bool, error) {
	probes := append([]string{}, b.settings.StackPackages...)
	if len(b.settings.PHPPackages) > 0 {
		probes = append(probes, fmt.Sprintf(b.settings.PHPPackages[0], phpVersion))
	}
	for _, pkg := range probes {
		installed, err := b.packageInstalled(ctx, pkg)
		if err != nil {
			return false, err
		}
		if !installed {
			return false, nil
		}
	}
	return true, nil
}

// appendSiteOperations emits the create-site sequence: document root,
// virtual-host file, web-server reload, then database creation. The site
// depends on the stack being installed already.
func (b *PlanBuilder) appendSiteOperations(ctx context.Context, plan *Plan, intent Intent) error {
	present, err := b.stackPresent(ctx, intent.PHPVersion)
	if err != nil {
		return err
	}
	if !present {
		if !intent.AutoProvision {
			return NewDependencyError(
				fmt.Sprintf("stack is not installed for PHP %s; run install-stack first or enable auto-provisioning", intent.PHPVersion),
				nil)
		}
		if err := b.appendStackOperations(ctx, plan, intent.PHPVersion); err != nil {
			return err
		}
	}

	timeout := b.settings.OperationTimeout
	siteDir := filepath.Join(b.settings.SitesDir, intent.SiteName)
	docRoot := filepath.Join(siteDir, b.settings.DocRootSubdir)
	vhostPath := filepath.Join(b.settings.VhostsDir, intent.SiteName+".conf")

	content, err := vhost.Render(vhost.Site{
		ServerName:   intent.SiteName,
		DocumentRoot: docRoot,
		PHPVersion:   intent.PHPVersion,
	})
	if err != nil {
		return err
	}

	dirInverse := RemovePathEffect(siteDir)
	vhostInverse := RemovePathEffect(vhostPath)

	plan.Expected.Files = append(plan.Expected.Files, docRoot, vhostPath)
	plan.Operations = append(plan.Operations,
		Operation{
			ID:          "docroot",
			Kind:        KindFile,
			Target:      docRoot,
			Description: "create document root " + docRoot,
			Forward:     MakeDirEffect(docRoot, 0o755, true),
			Inverse:     &dirInverse,
			Timeout:     timeout,
		},
		Operation{
			ID:          "vhost",
			Kind:        KindFile,
			Target:      vhostPath,
			Description: "write virtual host " + vhostPath,
			Forward:     WriteFileEffect(vhostPath, content, 0o644),
			Inverse:     &vhostInverse,
			Timeout:     timeout,
		},
		Operation{
			ID:           "reload-" + b.settings.WebServerService,
			Kind:         KindService,
			Target:       b.settings.WebServerService,
			Description:  "reload service " + b.settings.WebServerService,
			Forward:      SystemctlEffect("reload", b.settings.WebServerService),
			Irreversible: true,
			Timeout:      timeout,
		},
	)

	if !intent.WithDatabase {
		return nil
	}

	dbName := strings.ReplaceAll(intent.SiteName, ".", "_") + "_db"
	dbUser := dbName + "_user"
	cred, err := GenerateCredential(dbUser, 0)
	if err != nil {
		return err
	}
	password, err := cred.Password()
	if err != nil {
		return err
	}

	dbInverse := MysqlEffect(DropSiteDatabaseSQL(dbName, dbUser), b.settings.DatabaseRootPassword, false)
	plan.Credential = cred
	plan.Expected.Databases = append(plan.Expected.Databases, dbName)
	plan.Expected.Users = append(plan.Expected.Users, dbUser)
	plan.Operations = append(plan.Operations, Operation{
		ID:          "database",
		Kind:        KindDatabase,
		Target:      dbName,
		Description: fmt.Sprintf("create database %s and user %s with grant", dbName, dbUser),
		Forward: MysqlEffect(
			CreateSiteDatabaseSQL(dbName, dbUser, password,
				b.settings.DatabaseCharset, b.settings.DatabaseCollation),
			b.settings.DatabaseRootPassword, true),
		Inverse: &dbInverse,
		Timeout: timeout,
	})
	return nil
}
