package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
)

var (
	flagTokenUser  string
	flagTokenEmail string
	flagTokenName  string
	flagTokenRoles []string
)

// tokenCmd issues a session token for development. With a database
// configured it also provisions the profile and grants the requested roles.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development session token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := uuid.Parse(flagTokenUser); err != nil {
			return fmt.Errorf("--user must be a UUID: %w", err)
		}
		roles := make([]domain.AppRole, 0, len(flagTokenRoles))
		for _, raw := range flagTokenRoles {
			role := domain.AppRole(strings.ToLower(strings.TrimSpace(raw)))
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", raw)
			}
			roles = append(roles, role)
		}

		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Postgres.DSN != "" {
			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			name := flagTokenName
			if name == "" {
				name = flagTokenEmail
			}
			profile := &domain.Profile{ID: flagTokenUser, Name: name, Email: flagTokenEmail}
			if err := repository.NewProfileRepository(pg.PoolHandle()).Upsert(cmd.Context(), profile); err != nil {
				return fmt.Errorf("upsert profile: %w", err)
			}
			roleRepo := repository.NewUserRoleRepository(pg.PoolHandle())
			for _, role := range roles {
				if err := roleRepo.Grant(cmd.Context(), flagTokenUser, role); err != nil {
					return fmt.Errorf("grant %s: %w", role, err)
				}
			}
			logger.Info("profile provisioned", zap.String("user_id", flagTokenUser), zap.Any("roles", roles))
		} else if len(roles) > 0 {
			logger.Warn("no POSTGRES_DSN; roles not persisted, start serve with --dev-admin/--dev-tech instead")
		}

		token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()).
			GenerateToken(flagTokenUser, flagTokenEmail)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		logger.Debug("token issued", zap.Time("expires_at", expiresAt))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagTokenUser, "user", "", "user id (UUID)")
	tokenCmd.Flags().StringVar(&flagTokenEmail, "email", "", "user email")
	tokenCmd.Flags().StringVar(&flagTokenName, "name", "", "display name stored on the profile (defaults to the email)")
	tokenCmd.Flags().StringSliceVar(&flagTokenRoles, "role", nil, "roles to grant: admin, tecnico, cliente")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("email")
}
