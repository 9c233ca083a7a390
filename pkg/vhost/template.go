// Package vhost renders Apache virtual-host configuration files. Rendering
// is a pure function of its inputs so it can be tested without touching a
// real Apache installation.
package vhost

import (
	"bytes"
	"fmt"
	"text/template"
)

// Site describes one virtual host.
type Site struct {
	// ServerName is the site domain.
	ServerName string

	// DocumentRoot is the directory Apache serves.
	DocumentRoot string

	// PHPVersion selects the php-fpm socket the vhost proxies to.
	PHPVersion string

	// AdminEmail is the ServerAdmin address.
	AdminEmail string
}

var vhostTemplate = template.Must(template.New("vhost").Parse(`<VirtualHost *:80>
    ServerName {{.ServerName}}
    ServerAdmin {{.AdminEmail}}
    DocumentRoot {{.DocumentRoot}}

    <Directory {{.DocumentRoot}}>
        Options -Indexes +FollowSymLinks
        AllowOverride All
        Require all granted
    </Directory>

    <FilesMatch \.php$>
        SetHandler "proxy:unix:/run/php/php{{.PHPVersion}}-fpm.sock|fcgi://localhost"
    </FilesMatch>

    ErrorLog ${APACHE_LOG_DIR}/{{.ServerName}}-error.log
    CustomLog ${APACHE_LOG_DIR}/{{.ServerName}}-access.log combined
</VirtualHost>
`))

// Render produces the virtual-host file content for a site.
func Render(site Site) ([]byte, error) {
	if site.ServerName == "" {
		return nil, fmt.Errorf("vhost: server name is required")
	}
	if site.DocumentRoot == "" {
		return nil, fmt.Errorf("vhost: document root is required")
	}
	if site.AdminEmail == "" {
		site.AdminEmail = "webmaster@" + site.ServerName
	}

	var buf bytes.Buffer
	if err := vhostTemplate.Execute(&buf, site); err != nil {
		return nil, fmt.Errorf("vhost: render failed: %w", err)
	}
	return buf.Bytes(), nil
}
