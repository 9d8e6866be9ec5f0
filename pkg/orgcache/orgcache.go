package orgcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
)

// OrgAbility is the subset of organization state the request path needs on
// every call: feature toggles that gate authorization decisions. It is kept
// hot so handlers never block on the organizations table.
type OrgAbility struct {
	ID                                   uuid.UUID `json:"id"`
	Enabled                              bool      `json:"enabled"`
	UsePolicies                          bool      `json:"usePolicies"`
	UseResetPassword                     bool      `json:"useResetPassword"`
	FlexibleCollections                  bool      `json:"flexibleCollections"`
	AllowAdminAccessToAllCollectionItems bool      `json:"allowAdminAccessToAllCollectionItems"`
}

// AbilityFromOrganization projects an organization onto its ability flags
func AbilityFromOrganization(org *orgs.Organization) *OrgAbility {
	return &OrgAbility{
		ID:                                   org.ID,
		Enabled:                              org.Enabled,
		UsePolicies:                          org.UsePolicies,
		UseResetPassword:                     org.UseResetPassword,
		FlexibleCollections:                  org.FlexibleCollections,
		AllowAdminAccessToAllCollectionItems: org.AllowAdminAccessToAllCollectionItems,
	}
}

// OrganizationGetter loads an organization on cache miss
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*orgs.Organization, error)
}

// Cache layers an in-process LRU over Redis over the database. Misses are
// collapsed per organization so a cold key costs one database query no
// matter how many requests land on it at once.
type Cache struct {
	store  OrganizationGetter
	redis  *redis.Client
	local  *lru.LRU[uuid.UUID, *OrgAbility]
	group  singleflight.Group
	ttl    time.Duration
	logger *observability.Logger
}

// Config controls cache sizing and lifetimes
type Config struct {
	// MaxLocalEntries bounds the in-process LRU. Zero means 1024.
	MaxLocalEntries int
	// LocalTTL expires in-process entries. Zero means 30 seconds.
	LocalTTL time.Duration
	// RedisTTL expires Redis entries. Zero means 15 minutes.
	RedisTTL time.Duration
}

// New creates a Cache over the given Redis client and loader
func New(store OrganizationGetter, client *redis.Client, config Config, logger *observability.Logger) *Cache {
	if config.MaxLocalEntries <= 0 {
		config.MaxLocalEntries = 1024
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = 30 * time.Second
	}
	if config.RedisTTL <= 0 {
		config.RedisTTL = 15 * time.Minute
	}
	return &Cache{
		store:  store,
		redis:  client,
		local:  lru.NewLRU[uuid.UUID, *OrgAbility](config.MaxLocalEntries, nil, config.LocalTTL),
		ttl:    config.RedisTTL,
		logger: logger,
	}
}

func abilityKey(orgID uuid.UUID) string {
	return fmt.Sprintf("org:ability:%s", orgID)
}

// Get returns the organization's ability flags, loading through Redis and
// the database as needed
func (c *Cache) Get(ctx context.Context, orgID uuid.UUID) (*OrgAbility, error) {
	if ability, ok := c.local.Get(orgID); ok {
		return ability, nil
	}

	value, err, _ := c.group.Do(orgID.String(), func() (interface{}, error) {
		return c.load(ctx, orgID)
	})
	if err != nil {
		return nil, err
	}
	return value.(*OrgAbility), nil
}

func (c *Cache) load(ctx context.Context, orgID uuid.UUID) (*OrgAbility, error) {
	key := abilityKey(orgID)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var ability OrgAbility
		if err := json.Unmarshal([]byte(cached), &ability); err == nil {
			c.local.Add(orgID, &ability)
			return &ability, nil
		}
		c.redis.Del(ctx, key)
	} else if err != redis.Nil {
		// Redis outages fall through to the database
		c.logger.WithError(err).WithField("organization_id", orgID.String()).Warn("redis unavailable, loading organization ability from database")
	}

	org, err := c.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ability := AbilityFromOrganization(org)
	c.populate(ctx, ability)
	return ability, nil
}

// Upsert writes the organization's current flags through both cache layers
func (c *Cache) Upsert(ctx context.Context, org *orgs.Organization) error {
	c.populate(ctx, AbilityFromOrganization(org))
	return nil
}

func (c *Cache) populate(ctx context.Context, ability *OrgAbility) {
	c.local.Add(ability.ID, ability)
	data, err := json.Marshal(ability)
	if err != nil {
		return
	}
	c.redis.Set(ctx, abilityKey(ability.ID), data, c.ttl)
}

// Delete evicts the organization from both cache layers
func (c *Cache) Delete(ctx context.Context, orgID uuid.UUID) error {
	c.local.Remove(orgID)
	if err := c.redis.Del(ctx, abilityKey(orgID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
