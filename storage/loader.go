package storage

import (
	"encoding/json"
	"errors"

	"github.com/kubex/rubix-directory/storage/datastore"
	"github.com/kubex/rubix-directory/storage/jsonfile"
	"github.com/kubex/rubix-directory/storage/memory"
	"github.com/kubex/rubix-directory/storage/sql"
)

func Load(jsonBytes []byte) (Provider, error) {

	loader := struct {
		Provider      string
		Configuration *json.RawMessage
	}{}

	err := json.Unmarshal(jsonBytes, &loader)
	if err != nil {
		return nil, err
	}

	config := []byte("{}")
	if loader.Configuration != nil {
		config = *loader.Configuration
	}

	switch loader.Provider {
	case sql.ProviderKey:
		return sql.FromJson(config)
	case jsonfile.ProviderKey:
		return jsonfile.FromJson(config)
	case datastore.ProviderKey:
		return datastore.FromJson(config)
	case memory.ProviderKey:
		return memory.New(), nil
	}

	return nil, errors.New("unable to load storage provider '" + loader.Provider + "'")
}
