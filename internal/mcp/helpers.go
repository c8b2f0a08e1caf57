package mcpserver

import (
	"encoding/json"
	"fmt"

	"slides/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// floatArg returns a pointer to args[key] when the caller sent a number.
func floatArg(args map[string]any, key string) *float64 {
	if v, ok := args[key].(float64); ok {
		return &v
	}
	return nil
}

// stringArg returns a pointer to args[key] when the caller sent a string.
func stringArg(args map[string]any, key string) *string {
	if v, ok := args[key].(string); ok {
		return &v
	}
	return nil
}

// elementIDArg reads the required elementId argument.
func elementIDArg(args map[string]any) (domain.ElementID, error) {
	v, ok := args["elementId"].(float64)
	if !ok || v <= 0 {
		return domain.NoElement, fmt.Errorf("elementId is required")
	}
	return domain.ElementID(v), nil
}

// slideIDArg reads the slideId argument, falling back to the current slide.
func (s *Server) slideIDArg(args map[string]any) (int, error) {
	if v, ok := args["slideId"].(float64); ok && v > 0 {
		return int(v), nil
	}
	st, err := s.decks.State()
	if err != nil {
		return 0, err
	}
	return st.CurrentSlideID, nil
}
