package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/kubex/rubix-directory/rubix"
	"github.com/kubex/rubix-directory/storage/memory"
)

const ProviderKey = "jsonfile"

// Provider serves a directory snapshot read from <dataDirectory>/directory.users.json and
// directory.teams.json. Writes are rejected with rubix.ErrReadOnly.
type Provider struct {
	*memory.Provider
	dataDirectory string
}

func FromJson(data []byte) (*Provider, error) {
	cfg := struct {
		DataDirectory string `json:"dataDirectory"`
	}{}

	if err := json.Unmarshal(data, &cfg); err == nil {
		return New(cfg.DataDirectory), nil
	} else {
		return nil, err
	}
}

func New(dataDirectory string) *Provider {
	return &Provider{Provider: memory.New(), dataDirectory: dataDirectory}
}

func (p *Provider) filePath(dataType, filename string) string {
	return strings.TrimRight(p.dataDirectory, "/") + "/" + dataType + "." + filename + ".json"
}

type userRecord struct {
	ID            string             `json:"id"`
	Username      string             `json:"username"`
	Email         string             `json:"email"`
	Alias         string             `json:"alias"`
	Title         string             `json:"title"`
	AccountNumber string             `json:"accountNumber"`
	Enabled       bool               `json:"enabled"`
	Roles         []string           `json:"roles"`
	Registered    time.Time          `json:"registered"`
	Preferences   []rubix.Preference `json:"preferences"`
}

type teamRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Members []struct {
		User  string          `json:"user"`
		Level rubix.TeamLevel `json:"level"`
	} `json:"members"`
}

// Connect reads the snapshot files. Calling it again replaces nothing; the first load wins.
func (p *Provider) Connect() error {
	var users []userRecord
	if err := p.readFile("users", &users); err != nil {
		return err
	}
	var teams []teamRecord
	if err := p.readFile("teams", &teams); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	ctx := context.Background()
	for _, u := range users {
		if u.ID == "" || u.Username == "" {
			return errors.New("invalid user data in " + p.filePath("directory", "users"))
		}
		_, err := p.Provider.CreateUser(ctx, rubix.User{
			ID:            u.ID,
			Username:      u.Username,
			Email:         u.Email,
			Alias:         u.Alias,
			Title:         u.Title,
			AccountNumber: u.AccountNumber,
			Enabled:       u.Enabled,
			Roles:         u.Roles,
			Registered:    u.Registered,
			Preferences:   u.Preferences,
		})
		if errors.Is(err, rubix.ErrDuplicate) {
			continue
		} else if err != nil {
			return err
		}
	}

	for _, t := range teams {
		team := rubix.Team{ID: t.ID, Name: t.Name}
		for _, m := range t.Members {
			team.Members = append(team.Members, rubix.UserTeam{User: m.User, Team: t.ID, Level: m.Level})
		}
		if _, err := p.Provider.CreateTeam(ctx, team); err != nil && !errors.Is(err, rubix.ErrDuplicate) {
			return err
		}
	}
	return nil
}

func (p *Provider) readFile(filename string, into any) error {
	path := p.filePath("directory", filename)
	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && filename == "teams" {
			return err
		}
		return errors.New("unable to load " + filename + ".json @ " + path)
	}
	if err := json.Unmarshal(bytes, into); err != nil {
		return errors.New("unable to decode " + filename + " json: " + err.Error())
	}
	return nil
}

func (p *Provider) CreateUser(context.Context, rubix.User) (string, error) {
	return "", rubix.ErrReadOnly
}

func (p *Provider) MutateUser(context.Context, string, ...rubix.MutateUserOption) error {
	return rubix.ErrReadOnly
}

func (p *Provider) CreateTeam(context.Context, rubix.Team) (string, error) {
	return "", rubix.ErrReadOnly
}

func (p *Provider) MutateTeam(context.Context, string, ...rubix.MutateTeamOption) error {
	return rubix.ErrReadOnly
}

func (p *Provider) DeleteUser(context.Context, string, string) error {
	return rubix.ErrReadOnly
}
