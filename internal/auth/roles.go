package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vetlink/consultation-service/internal/domain"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// RequireVet ensures a VET is authenticated.
func RequireVet() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeVet {
			return apperrors.NewForbidden("vet required")
		}
		return c.Next()
	}
}

// RequireCustomer ensures a CUSTOMER is authenticated.
func RequireCustomer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeCustomer {
			return apperrors.NewForbidden("customer required")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated (customer or vet).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
