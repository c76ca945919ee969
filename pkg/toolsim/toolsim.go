// Package toolsim emulates the external tools a production agent would
// call (menu search, delivery, orders) so simulations run without live
// backends.
package toolsim

import (
	"fmt"
	"math/rand"
	"strings"

	"simulator/pkg/logx"
)

// MenuItem is one entry in the emulated menu.
type MenuItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// DeliveryZone describes an emulated delivery area.
type DeliveryZone struct {
	Zone         string  `json:"zone"`
	DeliveryTime string  `json:"delivery_time"`
	Fee          float64 `json:"fee"`
}

// ToolInfo describes an available tool.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
}

// Emulator serves canned tool responses.
type Emulator struct {
	menu   []MenuItem
	zones  []DeliveryZone
	rng    *rand.Rand
	logger *logx.Logger
}

// NewEmulator creates an emulator with the default sample data.
func NewEmulator() *Emulator {
	return NewEmulatorWithSeed(rand.Int63())
}

// NewEmulatorWithSeed creates an emulator with deterministic randomness.
func NewEmulatorWithSeed(seed int64) *Emulator {
	return &Emulator{
		menu: []MenuItem{
			{Name: "филе курицы", Price: 450, Category: "мясо"},
			{Name: "пицца маргарита", Price: 650, Category: "пицца"},
			{Name: "суши сет", Price: 890, Category: "суши"},
			{Name: "роллы филадельфия", Price: 520, Category: "роллы"},
			{Name: "борщ", Price: 280, Category: "супы"},
			{Name: "салат цезарь", Price: 380, Category: "салаты"},
		},
		zones: []DeliveryZone{
			{Zone: "центр", DeliveryTime: "30-45 мин", Fee: 0},
			{Zone: "север", DeliveryTime: "45-60 мин", Fee: 100},
			{Zone: "юг", DeliveryTime: "40-55 мин", Fee: 80},
			{Zone: "восток", DeliveryTime: "50-65 мин", Fee: 120},
			{Zone: "запад", DeliveryTime: "35-50 мин", Fee: 90},
		},
		rng:    rand.New(rand.NewSource(seed)),
		logger: logx.NewLogger("toolsim"),
	}
}

// CallTool dispatches an emulated tool call. Unknown tools and emulation
// failures come back as error payloads, not Go errors, mirroring what a
// real tool gateway would return to the model.
func (e *Emulator) CallTool(toolName string, parameters map[string]any, sessionID string) map[string]any {
	e.logger.Debug("tool call: %s session=%s", toolName, sessionID)

	switch toolName {
	case "search_menu":
		return e.searchMenu(parameters)
	case "check_availability":
		return e.checkAvailability(parameters)
	case "calculate_delivery":
		return e.calculateDelivery(parameters)
	case "create_order":
		return e.createOrder(parameters)
	case "get_customer_history":
		return e.customerHistory(parameters)
	default:
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", toolName)}
	}
}

func (e *Emulator) searchMenu(parameters map[string]any) map[string]any {
	query := strings.ToLower(stringParam(parameters, "query"))
	category := strings.ToLower(stringParam(parameters, "category"))

	results := make([]MenuItem, 0, len(e.menu))
	for _, item := range e.menu {
		if (query == "" || strings.Contains(strings.ToLower(item.Name), query)) &&
			(category == "" || strings.Contains(strings.ToLower(item.Category), category)) {
			results = append(results, item)
		}
	}

	return map[string]any{
		"status":      "success",
		"results":     results,
		"total_found": len(results),
	}
}

func (e *Emulator) checkAvailability(parameters map[string]any) map[string]any {
	itemName := stringParam(parameters, "item_name")
	quantity := intParam(parameters, "quantity", 1)

	// 75% chance the item is in stock.
	if e.rng.Intn(4) < 3 {
		return map[string]any{
			"status":              "available",
			"item":                itemName,
			"quantity_available":  quantity + e.rng.Intn(11),
			"estimated_prep_time": fmt.Sprintf("%d мин", 15+e.rng.Intn(31)),
		}
	}

	return map[string]any{
		"status":       "unavailable",
		"item":         itemName,
		"reason":       "временно отсутствует",
		"alternatives": e.sampleNames(2),
	}
}

func (e *Emulator) calculateDelivery(parameters map[string]any) map[string]any {
	zone := e.zones[e.rng.Intn(len(e.zones))]
	return map[string]any{
		"status":        "success",
		"zone":          zone.Zone,
		"delivery_time": zone.DeliveryTime,
		"delivery_fee":  zone.Fee,
		"address":       stringParam(parameters, "address"),
	}
}

func (e *Emulator) createOrder(parameters map[string]any) map[string]any {
	items, _ := parameters["items"].([]any)

	total := 0.0
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		price, _ := item["price"].(float64)
		quantity := intParam(item, "quantity", 1)
		total += price * float64(quantity)
	}

	return map[string]any{
		"status":             "created",
		"order_id":           fmt.Sprintf("ORD-%d", 10000+e.rng.Intn(90000)),
		"total_amount":       total,
		"estimated_delivery": fmt.Sprintf("%d мин", 30+e.rng.Intn(31)),
		"items":              items,
		"customer":           parameters["customer_info"],
	}
}

func (e *Emulator) customerHistory(parameters map[string]any) map[string]any {
	if e.rng.Intn(2) == 0 {
		return map[string]any{
			"status":          "found",
			"customer_id":     fmt.Sprintf("CUST-%d", 1000+e.rng.Intn(9000)),
			"previous_orders": 1 + e.rng.Intn(15),
			"favorite_items":  e.sampleNames(2),
			"phone":           stringParam(parameters, "phone"),
		}
	}
	return map[string]any{
		"status":  "not_found",
		"message": "новый клиент",
	}
}

func (e *Emulator) sampleNames(n int) []string {
	perm := e.rng.Perm(len(e.menu))
	if n > len(perm) {
		n = len(perm)
	}
	names := make([]string, 0, n)
	for _, idx := range perm[:n] {
		names = append(names, e.menu[idx].Name)
	}
	return names
}

// AvailableTools lists the tools the emulator understands.
func (e *Emulator) AvailableTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search_menu", Description: "Search menu items by name or category", Parameters: []string{"query", "category"}},
		{Name: "check_availability", Description: "Check if item is available in requested quantity", Parameters: []string{"item_name", "quantity"}},
		{Name: "calculate_delivery", Description: "Calculate delivery time and fee for address", Parameters: []string{"address"}},
		{Name: "create_order", Description: "Create new order with items and customer info", Parameters: []string{"items", "customer_info"}},
		{Name: "get_customer_history", Description: "Get customer order history by phone number", Parameters: []string{"phone"}},
	}
}

func stringParam(parameters map[string]any, key string) string {
	value, _ := parameters[key].(string)
	return value
}

func intParam(parameters map[string]any, key string, fallback int) int {
	switch v := parameters[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
