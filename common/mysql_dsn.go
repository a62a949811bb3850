package common

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gosqlmysql "github.com/go-sql-driver/mysql"
)

// NormalizeMySQLDSN accepts either a go-sql-driver DSN or a mysql:// URL and
// returns a driver DSN with parseTime=true so DATETIME columns scan into
// time.Time. Location defaults to UTC unless the DSN says otherwise.
func NormalizeMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(strings.ToLower(dsn), "mysql://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", errors.Wrap(err, "parse mysql:// DSN")
		}
		if parsed.Host == "" {
			return "", errors.New("mysql DSN missing host")
		}

		userInfo := ""
		if parsed.User != nil {
			userInfo = parsed.User.Username()
			if pwd, ok := parsed.User.Password(); ok {
				userInfo += ":" + pwd
			}
		}
		dbName := strings.TrimPrefix(parsed.Path, "/")
		converted := fmt.Sprintf("tcp(%s)/%s", parsed.Host, dbName)
		if userInfo != "" {
			converted = userInfo + "@" + converted
		}
		if parsed.RawQuery != "" {
			converted += "?" + parsed.RawQuery
		}
		dsn = converted
	}

	cfg, err := gosqlmysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse MySQL DSN")
	}

	cfg.ParseTime = true
	if !strings.Contains(dsn, "loc=") {
		cfg.Loc = time.UTC
	}

	return cfg.FormatDSN(), nil
}
