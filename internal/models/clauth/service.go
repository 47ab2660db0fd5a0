package clauth

import (
	"context"
	"errors"
	"fmt"
	"littlefolio/internal/models/clmetrics"
	"strings"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnauthorized = errors.New("non autorisé")

type Service struct {
	db  *gorm.DB
	jwt *JWTManager
	now func() time.Time
}

func NewService(db *gorm.DB, jwt *JWTManager) *Service {
	return &Service{db: db, jwt: jwt, now: time.Now}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &AdminSession{})
}

func fail(reason string) error {
	clmetrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	return ErrUnauthorized
}

// SeedAdmin crée ou met à jour l'administrateur décrit par la configuration
func (s *Service) SeedAdmin(ctx context.Context, username, email, hash string) (*User, error) {
	if username == "" || hash == "" {
		return nil, fmt.Errorf("login et hash administrateur obligatoires")
	}

	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
		Active:       true,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("création administrateur: %w", err)
	}

	var stored User
	if err := s.db.WithContext(ctx).Where("username = ?", username).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// Login vérifie le mot de passe argon2 et ouvre une session
func (s *Service) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail("unknown_user")
	}
	if err != nil {
		return nil, err
	}

	if err := argon2.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fail("bad_password")
	}
	if !user.Active {
		return nil, fail("inactive_user")
	}

	token, expires, err := s.jwt.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := AdminSession{
			Token:     token,
			UserID:    user.ID,
			ExpiresAt: expires,
			IPAddress: ip,
			UserAgent: userAgent,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		return tx.Model(&user).UpdateColumn("last_login", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("création session: %w", err)
	}

	log.Info().Str("user", user.Username).Str("ip", ip).Msg("Connexion administrateur")
	return &LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}

// Verify: signature valide, session existante pour ce token et cet utilisateur, non expirée, utilisateur actif
func (s *Service) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, fail("missing_token")
	}

	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		log.Debug().Err(err).Msg("token admin rejeté")
		return nil, fail("invalid_token")
	}

	var session AdminSession
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("token = ? AND user_id = ?", token, claims.UserID).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail("unknown_session")
	}
	if err != nil {
		return nil, err
	}

	if !session.ExpiresAt.After(s.now()) {
		return nil, fail("expired_session")
	}
	if !session.User.Active {
		return nil, fail("inactive_user")
	}

	return &session.User, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&AdminSession{}).Error
}

// PurgeExpired supprime les sessions expirées
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&AdminSession{})
	return res.RowsAffected, res.Error
}
