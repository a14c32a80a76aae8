package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldFallsBackToDefault(t *testing.T) {
	f := Fields{
		"saved":    json.RawMessage(`250.5`),
		"username": json.RawMessage(`null`),
		"isGhost":  json.RawMessage(`"yes"`),
	}

	assert.Equal(t, 250.5, Field(f, "saved", 0.0))
	assert.Equal(t, "Anonymous", Field(f, "username", "Anonymous"))
	assert.Equal(t, false, Field(f, "isGhost", false))
	assert.Equal(t, 1000.0, Field(f, "goal", 1000.0))
	assert.Equal(t, []string{"Food"}, Field(f, "categories", []string{"Food"}))
}

func TestFieldNullablePointer(t *testing.T) {
	f := Fields{"deadline": json.RawMessage(`null`)}
	assert.Nil(t, Field[*string](f, "deadline", nil))

	f = Fields{"deadline": json.RawMessage(`"2026-12-31"`)}
	d := Field[*string](f, "deadline", nil)
	require.NotNil(t, d)
	assert.Equal(t, "2026-12-31", *d)
}

func TestEncodeFields(t *testing.T) {
	fields, err := EncodeFields(map[string]any{"saved": 250.0, "deadline": nil})
	require.NoError(t, err)

	assert.Equal(t, []string{"deadline", "saved"}, fields.Keys())
	assert.JSONEq(t, `250`, string(fields["saved"]))
	assert.JSONEq(t, `null`, string(fields["deadline"]))

	_, err = EncodeFields(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	f := Fields{"saved": json.RawMessage(`1`)}
	c := f.Clone()
	c["saved"][0] = '2'
	assert.Equal(t, `1`, string(f["saved"]))
}

func TestFieldKeepsSliceDefaultIntact(t *testing.T) {
	def := []string{"Salary", "Freelance", "Food", "Fun"}

	got := Field(Fields{"categories": json.RawMessage(`["x", 1]`)}, "categories", def)
	assert.Equal(t, []string{"Salary", "Freelance", "Food", "Fun"}, got)
	assert.Equal(t, []string{"Salary", "Freelance", "Food", "Fun"}, def)

	got = Field(Fields{"categories": json.RawMessage(`null`)}, "categories", def)
	assert.Equal(t, def, got)

	got = Field(Fields{"categories": json.RawMessage(` null `)}, "categories", def)
	assert.Equal(t, def, got)
}

func TestFieldDecodesShorterSliceWithoutDefaultTail(t *testing.T) {
	def := []string{"Salary", "Freelance", "Food"}
	assert.Equal(t, []string{"Rent"}, Field(Fields{"categories": json.RawMessage(`["Rent"]`)}, "categories", def))
	assert.Equal(t, []string{}, Field(Fields{"categories": json.RawMessage(`[]`)}, "categories", def))
}
