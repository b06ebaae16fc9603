package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Identities maps svn login names to git identities.
type Identities struct {
	table  map[string]string
	domain string
}

// NewIdentities returns an empty map that synthesizes identities in domain.
func NewIdentities(domain string) *Identities {
	domain = strings.ReplaceAll(strings.TrimSpace(domain), "@", "")
	if domain == "" {
		domain = "localhost"
	}
	return &Identities{table: make(map[string]string), domain: domain}
}

// LoadIdentities reads an identity map file, if filename is not empty.
//
//	loginname Joe User <user@example.com>
//	loginname = Joe User <user@example.com>
//
// Both the native and the git-svn authors file forms are accepted. Anything
// after '#' is a comment; lines without a name are ignored.
func LoadIdentities(filename, domain string) (*Identities, error) {
	ids := NewIdentities(domain)
	if filename == "" {
		return ids, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("identity map: %w", err)
	}
	if err := ids.Parse(data); err != nil {
		return nil, fmt.Errorf("identity map: %s: %w", filename, err)
	}
	return ids, nil
}

// Parse adds the entries of an identity map to the table.
func (ids *Identities) Parse(data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if comment := strings.IndexByte(line, '#'); comment != -1 {
			line = line[:comment]
		}
		line = strings.TrimSpace(line)

		var login, realname string
		if eq := strings.Index(line, " = "); eq != -1 {
			login, realname = line[:eq], line[eq+3:]
		} else if space := strings.IndexByte(line, ' '); space != -1 {
			login, realname = line[:space], line[space+1:]
		} else {
			continue
		}
		login, realname = strings.TrimSpace(login), strings.TrimSpace(realname)
		if login == "" || realname == "" {
			continue
		}
		ids.table[login] = realname
	}
	return scanner.Err()
}

// Lookup returns the git identity for an svn login.
func (ids *Identities) Lookup(login string) string {
	if identity, ok := ids.table[login]; ok {
		return identity
	}
	if login == "" {
		login = "nobody"
	}
	return fmt.Sprintf("%s <%s@%s>", login, login, ids.domain)
}

func (ids *Identities) Len() int {
	return len(ids.table)
}
