package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/staysignal/backend/internal/config"
)

const (
	ldapTimeout       = 10 * time.Second
	defaultUserFilter = "(mail=%s)"
)

var ErrDirectoryDisabled = errors.New("directory sign-in is not enabled")

// Directory verifies the password of managers whose accounts live in a
// corporate directory instead of the local table.
type Directory interface {
	Authenticate(login, password string) (*DirectoryUser, error)
}

type DirectoryUser struct {
	DN    string
	Email string
	Name  string
}

// LDAPService is the Directory backed by an LDAP server. Each sign-in opens
// its own connection.
type LDAPService struct {
	cfg *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{cfg: cfg}
}

func (s *LDAPService) IsEnabled() bool { return s.cfg != nil && s.cfg.Enabled }

func (s *LDAPService) url() string {
	scheme := "ldap"
	if s.cfg.UseSSL {
		scheme = "ldaps"
	}
	return scheme + "://" + net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *LDAPService) dial() (*ldap.Conn, error) {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: ldapTimeout})}
	if s.cfg.UseSSL {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.SkipVerify,
		}))
	}
	conn, err := ldap.DialURL(s.url(), opts...)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(ldapTimeout)
	return conn, nil
}

// Authenticate finds the login with the service account, then binds as the
// entry it found. Anything but exactly one match is a failed sign-in.
func (s *LDAPService) Authenticate(login, password string) (*DirectoryUser, error) {
	if !s.IsEnabled() {
		return nil, ErrDirectoryDisabled
	}
	if password == "" {
		// an empty password would be an anonymous bind, which many servers accept
		return nil, ErrInvalidCredentials
	}

	conn, err := s.dial()
	if err != nil {
		return nil, fmt.Errorf("ldap connect %s: %w", s.url(), err)
	}
	defer conn.Close()

	if s.cfg.BindDN != "" {
		if err := conn.Bind(s.cfg.BindDN, s.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("ldap service bind: %w", err)
		}
	}

	found, err := conn.Search(ldap.NewSearchRequest(
		s.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(ldapTimeout.Seconds()), false,
		ldapFilter(s.cfg.UserFilter, login),
		[]string{"cn", "mail"}, nil,
	))
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if found == nil || len(found.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}

	entry := found.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &DirectoryUser{
		DN:    entry.DN,
		Email: entry.GetAttributeValue("mail"),
		Name:  entry.GetAttributeValue("cn"),
	}, nil
}

func ldapFilter(template, login string) string {
	if template == "" {
		template = defaultUserFilter
	}
	return fmt.Sprintf(template, ldap.EscapeFilter(login))
}
