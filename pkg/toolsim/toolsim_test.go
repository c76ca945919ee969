package toolsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchMenu(t *testing.T) {
	e := NewEmulatorWithSeed(1)

	resp := e.CallTool("search_menu", map[string]any{"query": "пицца"}, "s1")
	assert.Equal(t, "success", resp["status"])
	results := resp["results"].([]MenuItem)
	require.Len(t, results, 1)
	assert.Equal(t, "пицца маргарита", results[0].Name)

	resp = e.CallTool("search_menu", map[string]any{}, "s1")
	assert.Equal(t, 6, resp["total_found"])

	resp = e.CallTool("search_menu", map[string]any{"category": "супы"}, "s1")
	assert.Equal(t, 1, resp["total_found"])
}

func TestCheckAvailability(t *testing.T) {
	e := NewEmulatorWithSeed(42)

	resp := e.CallTool("check_availability", map[string]any{"item_name": "борщ", "quantity": 2}, "s1")
	status := resp["status"]
	assert.Contains(t, []any{"available", "unavailable"}, status)
	if status == "unavailable" {
		assert.Len(t, resp["alternatives"], 2)
	}
}

func TestCreateOrder(t *testing.T) {
	e := NewEmulatorWithSeed(7)

	resp := e.CallTool("create_order", map[string]any{
		"items": []any{
			map[string]any{"name": "борщ", "price": 280.0, "quantity": 2.0},
			map[string]any{"name": "салат цезарь", "price": 380.0},
		},
	}, "s1")

	assert.Equal(t, "created", resp["status"])
	assert.InDelta(t, 940.0, resp["total_amount"].(float64), 0.001)
	assert.Regexp(t, `^ORD-\d{5}$`, resp["order_id"])
}

func TestCalculateDelivery(t *testing.T) {
	e := NewEmulatorWithSeed(3)

	resp := e.CallTool("calculate_delivery", map[string]any{"address": "ул. Ленина 1"}, "s1")
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "ул. Ленина 1", resp["address"])
	assert.NotEmpty(t, resp["zone"])
}

func TestUnknownTool(t *testing.T) {
	e := NewEmulatorWithSeed(1)

	resp := e.CallTool("launch_rocket", nil, "s1")
	assert.Contains(t, resp["error"], "Unknown tool")
}

func TestAvailableTools(t *testing.T) {
	assert.Len(t, NewEmulator().AvailableTools(), 5)
}
