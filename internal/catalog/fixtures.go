package catalog

import "github.com/EddyMaster88/ml-affiliate-poster/internal/models"

func int64Ptr(v int64) *int64 { return &v }

// FallbackListings returns the fixed fixture set used when the search API is
// unreachable or blocked. The content is stable so tests and dry runs always
// see the same three items.
func FallbackListings() []models.Listing {
	return []models.Listing{
		{
			ID:              "MLBTEST1",
			Title:           "Sabonete Nivea Creme Care 90g",
			Price:           6.99,
			OriginalPrice:   9.99,
			CategoryID:      "TEST",
			Permalink:       "https://produto.mercadolivre.com.br/MLB-TEST1",
			Thumbnail:       "https://http2.mlstatic.com/D_NQ_NP_2X_651980-MLB1234567890_012025-F.webp",
			OfficialStoreID: int64Ptr(1),
			Shipping:        models.Shipping{FreeShipping: true},
		},
		{
			ID:              "MLBTEST2",
			Title:           "Sabonete Nivea Erva Doce 85g",
			Price:           5.49,
			OriginalPrice:   7.99,
			CategoryID:      "TEST",
			Permalink:       "https://produto.mercadolivre.com.br/MLB-TEST2",
			Thumbnail:       "https://http2.mlstatic.com/D_NQ_NP_2X_999999-MLB1234567891_012025-F.webp",
			OfficialStoreID: int64Ptr(1),
			Shipping:        models.Shipping{FreeShipping: true},
		},
		{
			ID:              "MLBTEST3",
			Title:           "Sabonete Nivea Suave 90g Kit c/ 3",
			Price:           18.90,
			OriginalPrice:   27.90,
			CategoryID:      "TEST",
			Permalink:       "https://produto.mercadolivre.com.br/MLB-TEST3",
			Thumbnail:       "https://http2.mlstatic.com/D_NQ_NP_2X_888888-MLB1234567892_012025-F.webp",
			OfficialStoreID: int64Ptr(1),
			Shipping:        models.Shipping{FreeShipping: true},
		},
	}
}
