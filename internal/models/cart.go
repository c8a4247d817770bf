package models

// CartLine est une ligne de panier, unique par produit pour un utilisateur.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"` // prix courant catalogue, jamais persisté
	Quantity  int     `json:"quantity"`
}

type Cart struct {
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"items"`
	Total  float64    `json:"total"` // recalculé à chaque lecture
}
