package store

import (
	"encoding/json"
	"fmt"
)

// Document is the generic wire representation of one stored record. Typed
// records are mapped to and from documents at the store boundary via JSON,
// so every number inside a document is a float64.
type Document = map[string]interface{}

// Encode converts a typed record to a document.
func Encode(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to encode document: %w", err)
	}
	return doc, nil
}

// EncodeAll converts a slice of typed records to documents, preserving order.
func EncodeAll[T any](items []T) ([]Document, error) {
	docs := make([]Document, 0, len(items))
	for i, item := range items {
		doc, err := Encode(item)
		if err != nil {
			return nil, fmt.Errorf("store: item %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Decode converts a document back into a typed record.
func Decode[T any](doc Document) (T, error) {
	var out T
	data, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("store: failed to decode document: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("store: failed to decode document: %w", err)
	}
	return out, nil
}

// DecodeAll converts a slice of documents into typed records, preserving order.
func DecodeAll[T any](docs []Document) ([]T, error) {
	items := make([]T, 0, len(docs))
	for i, doc := range docs {
		item, err := Decode[T](doc)
		if err != nil {
			return nil, fmt.Errorf("store: document %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}
