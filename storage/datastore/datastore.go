package datastore

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"cloud.google.com/go/datastore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

const ProviderKey = "datastore"

const (
	kindUser       = "RxUser"
	kindTeam       = "RxTeam"
	kindTeamMember = "RxTeamMember"
)

type Provider struct {
	client    dataStoreClient
	ProjectID string `json:"projectId"`
	log       *zap.SugaredLogger
}

func FromJson(data []byte) (*Provider, error) {
	p := &Provider{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) SetLogger(log *zap.SugaredLogger) {
	p.log = log.Named("storage.datastore")
}

func (p *Provider) logger() *zap.SugaredLogger {
	if p.log == nil {
		p.log = zap.NewNop().Sugar()
	}
	return p.log
}

func (p *Provider) Init() error {
	client, err := datastore.NewClient(context.Background(), p.ProjectID,
		option.WithGRPCDialOption(grpc.WithReturnConnectionError()),
		option.WithGRPCDialOption(grpc.WithTimeout(time.Second*5)),
		option.WithGRPCDialOption(grpc.WithDisableRetry()))
	if err != nil {
		return err
	}
	p.client = cloudClient{client}
	return nil
}

func (p *Provider) Connect() error {
	if p.client != nil {
		return nil
	}
	return p.Init()
}

func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

type userEntity struct {
	ID            string
	Username      string
	Email         string
	Alias         string
	Title         string
	AccountNumber string
	Enabled       bool
	Roles         []string
	Registered    time.Time
	Preferences   []byte `datastore:",noindex"`
}

func (u userEntity) dsID() *datastore.Key {
	return datastore.NameKey(kindUser, u.ID, nil)
}

type teamEntity struct {
	ID   string
	Name string
}

func (t teamEntity) dsID() *datastore.Key {
	return datastore.NameKey(kindTeam, t.ID, nil)
}

// teamMemberEntity is stored under its team, keyed by user id.
type teamMemberEntity struct {
	Team  string
	User  string
	Level string
}

func (m teamMemberEntity) dsID() *datastore.Key {
	return datastore.NameKey(kindTeamMember, m.User, teamEntity{ID: m.Team}.dsID())
}

type filter struct {
	field string
	value any
}

// lookup describes a query so it can be served by Cloud Datastore or a test double.
type lookup struct {
	kind     string
	ancestor *datastore.Key
	filters  []filter
	keysOnly bool
	limit    int
}

func (l lookup) query() *datastore.Query {
	q := datastore.NewQuery(l.kind)
	if l.ancestor != nil {
		q = q.Ancestor(l.ancestor)
	}
	for _, f := range l.filters {
		q = q.FilterField(f.field, "=", f.value)
	}
	if l.keysOnly {
		q = q.KeysOnly()
	}
	if l.limit > 0 {
		q = q.Limit(l.limit)
	}
	return q
}

type dataStoreClient interface {
	io.Closer
	Get(ctx context.Context, key *datastore.Key, dst interface{}) (err error)
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	Delete(ctx context.Context, key *datastore.Key) error
	GetAll(ctx context.Context, l lookup, dst interface{}) (keys []*datastore.Key, err error)
}

type cloudClient struct {
	*datastore.Client
}

func (c cloudClient) GetAll(ctx context.Context, l lookup, dst interface{}) ([]*datastore.Key, error) {
	return c.Client.GetAll(ctx, l.query(), dst)
}
