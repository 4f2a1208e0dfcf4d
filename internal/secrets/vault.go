package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	appErr "github.com/voltade/platform-engine/pkg/errors"
)

// Store keeps environment-variable values out of the relational database.
// Keys are the EnvVar row ids; the name->id mapping lives in Postgres.
type Store interface {
	Put(ctx context.Context, id, value string) error
	Get(ctx context.Context, id string) (string, error)
	GetMany(ctx context.Context, ids []string) (map[string]string, error)
	Delete(ctx context.Context, id string) error
}

type vaultStore struct {
	client *vault.Client
	mount  string
}

// NewVaultStore connects to a Vault KV v2 mount.
func NewVaultStore(addr, token, mount string) (Store, error) {
	cfg := vault.DefaultConfig()
	cfg.Address = addr
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "create vault client failed")
	}
	client.SetToken(token)
	return &vaultStore{client: client, mount: mount}, nil
}

func (s *vaultStore) path(id string) string {
	return fmt.Sprintf("env_vars/%s", id)
}

func (s *vaultStore) Put(ctx context.Context, id, value string) error {
	_, err := s.client.KVv2(s.mount).Put(ctx, s.path(id), map[string]any{"value": value})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "write secret failed")
	}
	return nil
}

func (s *vaultStore) Get(ctx context.Context, id string) (string, error) {
	secret, err := s.client.KVv2(s.mount).Get(ctx, s.path(id))
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "read secret failed")
	}
	value, _ := secret.Data["value"].(string)
	return value, nil
}

func (s *vaultStore) GetMany(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		v, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func (s *vaultStore) Delete(ctx context.Context, id string) error {
	if err := s.client.KVv2(s.mount).DeleteMetadata(ctx, s.path(id)); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "delete secret failed")
	}
	return nil
}
