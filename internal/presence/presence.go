package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/udxhq/udx-backend/internal/auth"
)

// Store mirrors org presence into redis so ops tooling and sibling services
// can see who is online without reaching into the hub. The in-memory hub
// stays authoritative; this is a best-effort shadow.
//
// Keys:
//   <prefix>:online:<user_id>      -> connection id (string)
//   <prefix>:org-online:<org_id>   -> set of user ids
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) userKey(userID string) string {
	return fmt.Sprintf("%s:online:%s", s.prefix, userID)
}

func (s *Store) orgKey(orgID string) string {
	return fmt.Sprintf("%s:org-online:%s", s.prefix, orgID)
}

func (s *Store) Connected(ctx context.Context, id auth.Identity, connID string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.userKey(id.UserID), connID, 24*time.Hour)
	if id.HasOrg() {
		pipe.SAdd(ctx, s.orgKey(id.OrgID), id.UserID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Disconnected(ctx context.Context, id auth.Identity, connID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.userKey(id.UserID))
	if id.HasOrg() {
		pipe.SRem(ctx, s.orgKey(id.OrgID), id.UserID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// OnlineUsers lists user ids mirrored as online for an org.
func (s *Store) OnlineUsers(ctx context.Context, orgID string) ([]string, error) {
	return s.client.SMembers(ctx, s.orgKey(orgID)).Result()
}
