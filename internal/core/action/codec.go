package action

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Decode parses one action object. The "type" field selects the concrete
// type; an unknown or missing discriminant and any field the type does not
// define are decode errors. Decode does not run Validate: structural checks
// belong to dispatch, so one bad action fails alone.
func Decode(raw []byte) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("action is not an object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("action is not an object")
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("action is missing a type")
	}
	var kind Kind
	if err := json.Unmarshal(rawType, &kind); err != nil {
		return nil, fmt.Errorf("action type is not a string: %w", err)
	}
	delete(fields, "type")

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	var a Action
	switch kind {
	case KindSendMessage:
		a, err = decodeAs[SendMessage](body)
	case KindChannelPost:
		a, err = decodeAs[ChannelPost](body)
	case KindCreateFollowup:
		a, err = decodeAs[CreateFollowup](body)
	case KindCompleteFollowup:
		a, err = decodeAs[CompleteFollowup](body)
	case KindDeferFollowup:
		a, err = decodeAs[DeferFollowup](body)
	case KindEscalate:
		a, err = decodeAs[Escalate](body)
	case KindNoop:
		a, err = decodeAs[Noop](body)
	case "":
		return nil, fmt.Errorf("action is missing a type")
	default:
		return nil, fmt.Errorf("unknown action type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return a, nil
}

func decodeAs[T Action](raw []byte) (Action, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode serializes an action with its "type" discriminant.
func Encode(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", a.Kind(), err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", a.Kind(), err)
	}
	fields["type"] = a.Kind()
	return json.Marshal(fields)
}
