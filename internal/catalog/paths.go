package catalog

// Paths whose rendered content depends on catalog rows. API paths double as page-cache keys;
// the others are storefront and admin pages revalidated by the storefront hook.
const (
	PathAPIProducts       = "/api/products"
	PathAPIBanners        = "/api/banners"
	PathAPICategoryImages = "/api/categories/images"

	PathHome           = "/"
	PathShop           = "/products"
	PathAdminInventory = "/admin/inventory"
	PathAdminSales     = "/admin/sales"
	PathAdminBanners   = "/admin/banners"
)

func ProductPath(id string) string { return PathAPIProducts + "/" + id }
func ProductPagePath(id string) string { return PathShop + "/" + id }

// SalePaths covers the listing, the product detail, and the inventory and sales views.
func SalePaths(productID string) []string {
	return []string{
		PathAPIProducts, ProductPath(productID),
		PathShop, ProductPagePath(productID),
		PathAdminInventory, PathAdminSales,
	}
}

func ProductPaths(productID string) []string {
	return []string{
		PathHome, PathAPIProducts, ProductPath(productID),
		PathShop, ProductPagePath(productID),
		PathAdminInventory,
	}
}

func BannerPaths() []string {
	return []string{PathHome, PathAPIBanners, PathAdminBanners}
}

func CategoryImagePaths() []string {
	return []string{PathHome, PathAPICategoryImages, PathShop}
}
