package security

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/config"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKeyUserID is the gin context key for the authenticated user ID.
const ContextKeyUserID = "userID"

// Identity holds the resolved caller identity from a bearer token.
type Identity struct {
	UserID string
}

// Claims are the HS256 token claims. The uid is carried in sub, with
// user_id accepted for tokens minted by Firebase-compatible issuers.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

var (
	// ErrMissingToken is returned when no Authorization header was sent.
	ErrMissingToken = errors.New("missing Authorization header")
	// ErrInvalidToken is returned when the token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")

	errMissingIdentity = errors.New("token missing identity claims")
)

// TokenResolver resolves bearer tokens to caller identities. It is initialized once at startup.
type TokenResolver struct {
	verifier    *oidc.IDTokenVerifier
	secret      []byte
	testingMode bool
}

// NewTokenResolver creates a TokenResolver from the application config. It performs
// one-time OIDC provider discovery if OIDCIssuer is configured.
func NewTokenResolver(cfg *config.Config) *TokenResolver {
	var verifier *oidc.IDTokenVerifier
	oidcIssuer := cfg.OIDCIssuer

	if oidcIssuer != "" {
		ctx := context.Background()
		expectedIssuer := oidcIssuer
		discoveryURL := cfg.OIDCDiscoveryURL
		if discoveryURL != "" && discoveryURL != oidcIssuer {
			// NewProvider fetches from its issuer arg; accept the mismatched
			// issuer in the discovery document.
			ctx = oidc.InsecureIssuerURLContext(ctx, oidcIssuer)
			oidcIssuer = discoveryURL
		}
		oidcCfg := &oidc.Config{
			ClientID:          cfg.OIDCClientID,
			SkipClientIDCheck: cfg.OIDCClientID == "",
		}
		provider, err := oidc.NewProvider(ctx, oidcIssuer)
		if err != nil {
			log.Error("Failed to initialize OIDC provider", "issuer", oidcIssuer, "err", err)
		} else {
			var providerClaims struct {
				JWKSURI string `json:"jwks_uri"`
			}
			if expectedIssuer != oidcIssuer {
				if err := provider.Claims(&providerClaims); err == nil && providerClaims.JWKSURI != "" {
					keySet := oidc.NewRemoteKeySet(ctx, providerClaims.JWKSURI)
					verifier = oidc.NewVerifier(expectedIssuer, keySet, oidcCfg)
				}
			}
			if verifier == nil {
				verifier = provider.Verifier(oidcCfg)
			}
			log.Info("OIDC auth enabled", "issuer", expectedIssuer)
		}
	}

	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
		log.Info("Shared-secret JWT auth enabled")
	}

	return &TokenResolver{
		verifier:    verifier,
		secret:      secret,
		testingMode: cfg.Mode == config.ModeTesting,
	}
}

// Resolve verifies a bearer token (without the "Bearer " prefix) and returns the caller.
// OIDC is tried first, then the shared secret. In testing mode a token that
// is not a JWT is taken as the uid itself.
func (r *TokenResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	looksLikeJWT := strings.Count(token, ".") >= 2

	var errs []error
	if r.verifier != nil && looksLikeJWT {
		uid, err := r.resolveOIDC(ctx, token)
		if err == nil {
			return &Identity{UserID: uid}, nil
		}
		errs = append(errs, err)
	}
	if r.secret != nil && looksLikeJWT {
		uid, err := ParseToken(token, r.secret)
		if err == nil {
			return &Identity{UserID: uid}, nil
		}
		errs = append(errs, err)
	}
	if r.testingMode && !looksLikeJWT {
		return &Identity{UserID: token}, nil
	}
	return nil, errors.Join(append([]error{ErrInvalidToken}, errs...)...)
}

func (r *TokenResolver) resolveOIDC(ctx context.Context, token string) (string, error) {
	idToken, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub    string `json:"sub"`
		UserID string `json:"user_id"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", err
	}
	if claims.Sub != "" {
		return claims.Sub, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", errMissingIdentity
}

// SignToken mints an HS256 token for uid valid for ttl.
func SignToken(uid string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: uid,
	})
	return token.SignedString(secret)
}

// ParseToken verifies an HS256 token and returns its uid.
func ParseToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", errMissingIdentity
}

// TokenFromHeader extracts the token from an Authorization header value. Both
// "Bearer <token>" and a bare token are accepted.
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// --- Gin HTTP middleware ---

// GetUserID returns the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// AuthMiddleware resolves the caller from the Authorization header. A missing
// token is rejected with 401; a token that fails verification with 400.
func AuthMiddleware(resolver *TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			log.Info("Auth rejected: missing Authorization header", "method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "not authorized"})
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Info("Auth rejected", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "token problem"})
			return
		}

		c.Set(ContextKeyUserID, id.UserID)
		c.Next()
	}
}
