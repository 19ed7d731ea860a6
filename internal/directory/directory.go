// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package directory is the reference implementation of the permission and
// analysis-ownership collaborators. Team-scoped grants are evaluated by a
// Casbin RBAC-with-domains model in which each team is a domain.
//
// Directory files look like:
//
//	roles:
//	  viewer: [view_analyses]
//	  editor: [view_analyses, edit_analyses]
//	teams: [research, ops]
//	users:
//	  - id: alice
//	    admin: true
//	  - id: bob
//	    teams:
//	      research: editor
//	analyses:
//	  job-42: research
package directory

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/relay/internal/logging"
)

//go:embed model.conf
var embeddedModel string

const adminRole = "role:admin"

var (
	// ErrUnknownAnalysis is returned by AnalysisTeamID for unmapped ids.
	ErrUnknownAnalysis = errors.New("directory: unknown analysis")
	// ErrUnknownRole is returned when a membership names an undefined role.
	ErrUnknownRole = errors.New("directory: unknown role")
)

// User is one directory entry.
type User struct {
	ID    string            `koanf:"id"`
	Admin bool              `koanf:"admin"`
	Teams map[string]string `koanf:"teams"` // team -> role
}

// Document is the on-disk directory layout.
type Document struct {
	Roles    map[string][]string `koanf:"roles"`
	Teams    []string            `koanf:"teams"`
	Users    []User              `koanf:"users"`
	Analyses map[string]string   `koanf:"analyses"`
}

// Directory answers team permission and analysis ownership questions.
type Directory struct {
	viewPermission string

	mu       sync.RWMutex
	enforcer *casbin.SyncedEnforcer
	users    []string
	admins   map[string]struct{}
	teams    []string
	analyses map[string]string
}

// LoadFile reads a directory document from a YAML file.
func LoadFile(path, viewPermission string) (*Directory, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load directory %s: %w", path, err)
	}
	var doc Document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", path, err)
	}
	return New(doc, viewPermission)
}

// New builds a directory from doc. viewPermission is the permission that
// makes a team visible to a user.
func New(doc Document, viewPermission string) (*Directory, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	d := &Directory{
		enforcer:       enforcer,
		viewPermission: viewPermission,
		admins:         make(map[string]struct{}),
		analyses:       make(map[string]string, len(doc.Analyses)),
	}
	for id, team := range doc.Analyses {
		d.analyses[id] = team
	}

	teams := make(map[string]struct{})
	for _, t := range doc.Teams {
		teams[t] = struct{}{}
	}
	grantedRoleTeams := make(map[[2]string]struct{})
	for _, u := range doc.Users {
		d.users = append(d.users, u.ID)
		if u.Admin {
			d.admins[u.ID] = struct{}{}
			if _, err := enforcer.AddNamedGroupingPolicy("g2", u.ID, adminRole); err != nil {
				return nil, fmt.Errorf("add admin %s: %w", u.ID, err)
			}
		}
		for team, role := range u.Teams {
			if _, ok := doc.Roles[role]; !ok {
				return nil, fmt.Errorf("%w: %q for user %s", ErrUnknownRole, role, u.ID)
			}
			teams[team] = struct{}{}
			if _, err := enforcer.AddGroupingPolicy(u.ID, "role:"+role, team); err != nil {
				return nil, fmt.Errorf("add membership %s/%s: %w", u.ID, team, err)
			}
			grantedRoleTeams[[2]string{role, team}] = struct{}{}
		}
	}
	for rt := range grantedRoleTeams {
		for _, perm := range doc.Roles[rt[0]] {
			if _, err := enforcer.AddPolicy("role:"+rt[0], rt[1], perm); err != nil {
				return nil, fmt.Errorf("add policy %s/%s/%s: %w", rt[0], rt[1], perm, err)
			}
		}
	}
	for t := range teams {
		d.teams = append(d.teams, t)
	}
	sort.Strings(d.teams)
	sort.Strings(d.users)

	logging.Info().
		Int("users", len(d.users)).
		Int("teams", len(d.teams)).
		Int("analyses", len(d.analyses)).
		Msg("directory loaded")
	return d, nil
}

// Reload replaces the directory contents with the document at path. Moves
// made through MoveAnalysis are discarded. On error nothing changes.
func (d *Directory) Reload(path string) error {
	next, err := LoadFile(path, d.viewPermission)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.enforcer = next.enforcer
	d.users = next.users
	d.admins = next.admins
	d.teams = next.teams
	d.analyses = next.analyses
	d.mu.Unlock()
	return nil
}

// Allowed reports whether userID holds permission on teamID.
func (d *Directory) Allowed(userID, teamID, permission string) (bool, error) {
	d.mu.RLock()
	enforcer := d.enforcer
	d.mu.RUnlock()
	return enforcer.Enforce(userID, teamID, permission)
}

// IsAdmin reports whether userID is a directory administrator.
func (d *Directory) IsAdmin(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.admins[userID]
	return ok
}

// UserIDsWithTeamPermission returns every known user holding permission on
// teamID. Administrators hold every permission on every team.
func (d *Directory) UserIDsWithTeamPermission(ctx context.Context, teamID, permission string) ([]string, error) {
	d.mu.RLock()
	users := append([]string(nil), d.users...)
	enforcer := d.enforcer
	d.mu.RUnlock()

	var out []string
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := enforcer.Enforce(u, teamID, permission)
		if err != nil {
			return nil, fmt.Errorf("enforce %s on %s: %w", u, teamID, err)
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// AllowedTeamIDs returns the teams userID may view.
func (d *Directory) AllowedTeamIDs(ctx context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	teams := append([]string(nil), d.teams...)
	enforcer := d.enforcer
	d.mu.RUnlock()

	out := make([]string, 0, len(teams))
	for _, t := range teams {
		ok, err := enforcer.Enforce(userID, t, d.viewPermission)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// AnalysisTeamID returns the team owning an analysis.
func (d *Directory) AnalysisTeamID(_ context.Context, jobID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	team, ok := d.analyses[jobID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAnalysis, jobID)
	}
	return team, nil
}

// MoveAnalysis reassigns an analysis and returns its previous team.
func (d *Directory) MoveAnalysis(jobID, teamID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, ok := d.analyses[jobID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAnalysis, jobID)
	}
	d.analyses[jobID] = teamID
	return prev, nil
}

// Analyses returns a copy of the analysis -> team map.
func (d *Directory) Analyses() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.analyses))
	for k, v := range d.analyses {
		out[k] = v
	}
	return out
}

// Teams returns every known team id.
func (d *Directory) Teams() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.teams...)
}
