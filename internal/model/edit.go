package model

import (
	"encoding/json"
	"fmt"
)

// Action is the kind of edit requested by a widget. The zero value means no action.
type Action string

const (
	ActionNone   Action = ""
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// MarshalJSON encodes ActionNone as null.
func (a Action) MarshalJSON() ([]byte, error) {
	if a == ActionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON accepts null, "add" and "remove".
func (a *Action) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ActionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Action(s) {
	case ActionNone, ActionAdd, ActionRemove:
		*a = Action(s)
		return nil
	}
	return fmt.Errorf("unknown action %q", s)
}

// Point is an (x, y) pair in image space. Encoded as [x, y].
type Point struct {
	X float64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var v [2]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.X, p.Y = v[0], v[1]
	return nil
}

// ROI is an axis-aligned rectangle (x1, y1, x2, y2) in image space. Encoded as [x1, y1, x2, y2].
// Corner ordering is not enforced.
type ROI struct {
	X1, Y1, X2, Y2 int
}

func (r ROI) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X1, r.Y1, r.X2, r.Y2})
}

func (r *ROI) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.X1, r.Y1, r.X2, r.Y2 = v[0], v[1], v[2], v[3]
	return nil
}

// Width returns x2 - x1.
func (r ROI) Width() int { return r.X2 - r.X1 }

// Height returns y2 - y1.
func (r ROI) Height() int { return r.Y2 - r.Y1 }

// EditResult is the uniform return value of every interactive edit operation.
// Absent interaction is represented by nil fields, never by an error.
type EditResult struct {
	Action Action `json:"action"`
	Point  *Point `json:"point"`
	Index  *int   `json:"index"`
	ROI    *ROI   `json:"roi"`
}

// Empty reports whether the result carries no instruction.
func (r EditResult) Empty() bool {
	return r.Action == ActionNone && r.Point == nil && r.Index == nil && r.ROI == nil
}

// AddPoint builds an add instruction.
func AddPoint(x, y float64) EditResult {
	return EditResult{Action: ActionAdd, Point: &Point{X: x, Y: y}}
}

// RemovePoint builds a remove instruction addressed by position.
func RemovePoint(x, y float64) EditResult {
	return EditResult{Action: ActionRemove, Point: &Point{X: x, Y: y}}
}

// RemoveIndex builds a remove instruction addressed by list index.
func RemoveIndex(i int) EditResult {
	return EditResult{Action: ActionRemove, Index: &i}
}
