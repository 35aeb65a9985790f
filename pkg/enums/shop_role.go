package enums

import "fmt"

// ShopRole is the caller's role within the shop named by their token.
type ShopRole string

const (
	ShopRoleOwner   ShopRole = "owner"
	ShopRoleManager ShopRole = "manager"
	ShopRoleClerk   ShopRole = "clerk"
	ShopRoleService ShopRole = "service"
)

var validShopRoles = []ShopRole{
	ShopRoleOwner,
	ShopRoleManager,
	ShopRoleClerk,
	ShopRoleService,
}

// IsValid reports whether the value matches the canonical shop role enum.
func (s ShopRole) IsValid() bool {
	for _, candidate := range validShopRoles {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShopRole converts the raw string to ShopRole.
func ParseShopRole(value string) (ShopRole, error) {
	for _, candidate := range validShopRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shop role %q", value)
}
