package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/utils"
)

const defaultConfigListLimit = 500

// ConfigInput sets the commission terms of one affiliate/customer pair.
type ConfigInput struct {
	AffiliateID    string        `json:"affiliate_id"`
	CustomerCode   string        `json:"customer_code"`
	CommissionType string        `json:"commission_type"`
	CommissionRate utils.Numeric `json:"commission_rate"`
	IsActive       *bool         `json:"is_active"`
}

// ConfigRegistry stores commission terms keyed by affiliate and customer.
type ConfigRegistry struct {
	store  repositories.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewConfigRegistry(store repositories.Store, logger *zap.Logger) *ConfigRegistry {
	return &ConfigRegistry{store: store, logger: logger, now: time.Now}
}

// Get returns configurations matching the supplied filters; with no filter every
// configuration is returned, up to limit.
func (r *ConfigRegistry) Get(ctx context.Context, affiliateID, customerCode string, limit int64) ([]models.CommissionConfig, error) {
	if limit <= 0 {
		limit = defaultConfigListLimit
	}

	configs := []models.CommissionConfig{}
	switch {
	case affiliateID != "" && customerCode != "":
		var cfg models.CommissionConfig
		found, err := r.store.Get(ctx, repositories.TableConfigs, configKey(affiliateID, customerCode), &cfg)
		if err != nil {
			return nil, models.StoreUnavailable("get config", err)
		}
		if found {
			configs = append(configs, cfg)
		}
		return configs, nil

	case affiliateID != "":
		err := r.store.QueryByIndex(ctx, repositories.TableConfigs, repositories.IndexQuery{
			Index:      repositories.IndexConfigsByAffiliate,
			Conditions: []repositories.Condition{repositories.Eq("affiliate_id", affiliateID)},
			Limit:      limit,
		}, &configs)
		if err != nil {
			return nil, models.StoreUnavailable("query configs", err)
		}
		return configs, nil

	case customerCode != "":
		err := r.store.QueryByIndex(ctx, repositories.TableConfigs, repositories.IndexQuery{
			Index:      repositories.IndexConfigsByCustomer,
			Conditions: []repositories.Condition{repositories.Eq("customer_code", customerCode)},
			Limit:      limit,
		}, &configs)
		if err != nil {
			return nil, models.StoreUnavailable("query configs", err)
		}
		return configs, nil
	}

	if err := r.store.Scan(ctx, repositories.TableConfigs, limit, &configs); err != nil {
		return nil, models.StoreUnavailable("scan configs", err)
	}
	return configs, nil
}

// Set overwrites the configuration of a pair. Only created_at survives the overwrite.
func (r *ConfigRegistry) Set(ctx context.Context, in ConfigInput) (*models.CommissionConfig, error) {
	affiliateID := strings.TrimSpace(in.AffiliateID)
	customerCode := strings.TrimSpace(in.CustomerCode)
	if affiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	if customerCode == "" {
		return nil, models.MissingField("customer_code")
	}

	commissionType := models.CommissionType(strings.ToLower(in.CommissionType))
	if commissionType == "" {
		commissionType = models.CommissionPercentage
	}
	if err := ValidateCommissionType(commissionType); err != nil {
		return nil, err
	}
	if !in.CommissionRate.IsSet() {
		return nil, models.MissingField("commission_rate")
	}
	rate, err := in.CommissionRate.Decimal(decimal.Zero)
	if err != nil {
		return nil, models.ValidationError("commission_rate", err.Error())
	}
	if rate.IsNegative() {
		return nil, models.ValidationError("commission_rate", "commission_rate must not be negative")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	now := r.now().UTC()
	key := configKey(affiliateID, customerCode)
	createdAt := now
	var existing models.CommissionConfig
	if found, err := r.store.Get(ctx, repositories.TableConfigs, key, &existing); err != nil {
		return nil, models.StoreUnavailable("get config", err)
	} else if found {
		createdAt = existing.CreatedAt
	}

	cfg := &models.CommissionConfig{
		ConfigID:       models.ConfigID(affiliateID, customerCode),
		AffiliateID:    affiliateID,
		CustomerCode:   customerCode,
		CommissionType: commissionType,
		CommissionRate: rate,
		IsActive:       active,
		CreatedAt:      createdAt,
		UpdatedAt:      now,
	}
	if err := r.store.Put(ctx, repositories.TableConfigs, key, cfg); err != nil {
		return nil, models.StoreUnavailable("set config", err)
	}

	r.logger.Info("Commission config set",
		zap.String("config_id", cfg.ConfigID),
		zap.String("commission_type", string(cfg.CommissionType)),
		zap.String("commission_rate", cfg.CommissionRate.String()))
	return cfg, nil
}

// Resolve picks the active configuration for a pair, falling back to the
// affiliate-wide default.
func (r *ConfigRegistry) Resolve(ctx context.Context, affiliateID, customerCode string) (*models.CommissionConfig, error) {
	if affiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	for _, code := range []string{customerCode, models.AnyCustomer} {
		if code == "" {
			continue
		}
		var cfg models.CommissionConfig
		found, err := r.store.Get(ctx, repositories.TableConfigs, configKey(affiliateID, code), &cfg)
		if err != nil {
			return nil, models.StoreUnavailable("get config", err)
		}
		if found && cfg.IsActive {
			return &cfg, nil
		}
	}
	return nil, models.NotFound("no active commission config for " + models.ConfigID(affiliateID, customerCode))
}

func configKey(affiliateID, customerCode string) repositories.Key {
	return repositories.Key{"config_id": models.ConfigID(affiliateID, customerCode)}
}
