package engine

import (
	"fmt"
	"io/fs"
	"strings"
)

// Pure effect constructors. Nothing here touches the system; effects are
// applied later through the CommandRunner and FileSystem capabilities.

// AptInstallEffect installs packages with apt-get.
func AptInstallEffect(packages ...string) Effect {
	args := append([]string{"install", "-y"}, packages...)
	return Effect{Type: EffectRunCommand, Command: "apt-get", Args: args}
}

// AptRemoveEffect removes packages with apt-get.
func AptRemoveEffect(packages ...string) Effect {
	args := append([]string{"remove", "-y"}, packages...)
	return Effect{Type: EffectRunCommand, Command: "apt-get", Args: args}
}

// SystemctlEffect runs a systemctl action on a unit.
func SystemctlEffect(action, unit string) Effect {
	return Effect{Type: EffectRunCommand, Command: "systemctl", Args: []string{action, unit}}
}

// MakeDirEffect creates a directory tree. When guarded, application fails
// with a collision error if the path already exists.
func MakeDirEffect(path string, mode fs.FileMode, guarded bool) Effect {
	e := Effect{Type: EffectMakeDir, Path: path, Mode: mode}
	if guarded {
		e.GuardPath = path
	}
	return e
}

// WriteFileEffect writes content to path. The guard refuses to overwrite an
// existing file.
func WriteFileEffect(path string, content []byte, mode fs.FileMode) Effect {
	return Effect{Type: EffectWriteFile, Path: path, Content: content, Mode: mode, GuardPath: path}
}

// RemovePathEffect removes a path recursively.
func RemovePathEffect(path string) Effect {
	return Effect{Type: EffectRemovePath, Path: path}
}

// MysqlEffect runs SQL through the mysql client. The statement argument is
// redacted in descriptions and audit when redactSQL is set, since database
// creation statements embed the generated credential.
func MysqlEffect(sql, rootPassword string, redactSQL bool) Effect {
	args := []string{"-N"}
	redacted := []int{}
	if rootPassword != "" {
		args = append(args, "-p"+rootPassword)
		redacted = append(redacted, len(args)-1)
	}
	args = append(args, "-e", sql)
	if redactSQL {
		redacted = append(redacted, len(args)-1)
	}
	e := Effect{Type: EffectRunCommand, Command: "mysql", Args: args}
	if len(redacted) > 0 {
		e.Redacted = redacted
	}
	return e
}

// CreateSiteDatabaseSQL builds the statement creating a site's schema, user
// and grant in one client invocation.
func CreateSiteDatabaseSQL(db, user, password, charset, collation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE DATABASE `%s` CHARACTER SET %s COLLATE %s; ", db, charset, collation)
	fmt.Fprintf(&b, "CREATE USER '%s'@'localhost' IDENTIFIED BY '%s'; ", user, password)
	fmt.Fprintf(&b, "GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'localhost'; ", db, user)
	b.WriteString("FLUSH PRIVILEGES;")
	return b.String()
}

// DropSiteDatabaseSQL builds the inverse statement for CreateSiteDatabaseSQL.
func DropSiteDatabaseSQL(db, user string) string {
	return fmt.Sprintf("DROP USER IF EXISTS '%s'@'localhost'; DROP DATABASE IF EXISTS `%s`;", user, db)
}

// Describe renders an effect for dry-run and audit output, masking redacted
// arguments.
func (e Effect) Describe() string {
	switch e.Type {
	case EffectRunCommand:
		parts := []string{e.Command}
		for i, a := range e.Args {
			if e.isRedacted(i) {
				parts = append(parts, "<redacted>")
				continue
			}
			parts = append(parts, a)
		}
		return strings.Join(parts, " ")
	case EffectWriteFile:
		return fmt.Sprintf("write %d bytes to %s (mode %04o)", len(e.Content), e.Path, e.Mode)
	case EffectMakeDir:
		return fmt.Sprintf("create directory %s (mode %04o)", e.Path, e.Mode)
	case EffectRemovePath:
		return fmt.Sprintf("remove %s", e.Path)
	}
	return "unknown effect"
}

func (e Effect) isRedacted(i int) bool {
	for _, r := range e.Redacted {
		if r == i {
			return true
		}
	}
	return false
}
