package vhost

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out, err := Render(Site{
		ServerName:   "test.local",
		DocumentRoot: "/var/www/test.local/web",
		PHPVersion:   "8.1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	content := string(out)
	for _, want := range []string{
		"ServerName test.local",
		"ServerAdmin webmaster@test.local",
		"DocumentRoot /var/www/test.local/web",
		"<Directory /var/www/test.local/web>",
		"proxy:unix:/run/php/php8.1-fpm.sock|fcgi://localhost",
		"ErrorLog ${APACHE_LOG_DIR}/test.local-error.log",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected rendered vhost to contain %q", want)
		}
	}
}

func TestRender_ExplicitAdminEmail(t *testing.T) {
	out, err := Render(Site{
		ServerName:   "test.local",
		DocumentRoot: "/var/www/test.local/web",
		PHPVersion:   "8.2",
		AdminEmail:   "ops@example.com",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(out), "ServerAdmin ops@example.com") {
		t.Error("Expected the explicit admin email to be used")
	}
}

func TestRender_RequiredFields(t *testing.T) {
	if _, err := Render(Site{DocumentRoot: "/var/www/x"}); err == nil {
		t.Error("Expected an error without a server name")
	}
	if _, err := Render(Site{ServerName: "test.local"}); err == nil {
		t.Error("Expected an error without a document root")
	}
}
