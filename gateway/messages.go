package gateway

import (
	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/errors"
)

// ErrorBody carries a classified error across the wire.
type ErrorBody struct {
	Message string `json:"message"`
	Class   string `json:"class"`
}

// newErrorBody maps an error to its wire form.
func newErrorBody(err error) *ErrorBody {
	return &ErrorBody{
		Message: err.Error(),
		Class:   errors.Classify(err).String(),
	}
}

// CatalogRequest asks for the store's data IDs and types. It has no
// fields; an empty JSON object is a valid request.
type CatalogRequest struct{}

// CatalogResponse lists the store catalog.
type CatalogResponse struct {
	DataIDs   []string             `json:"data_ids,omitempty"`
	DataTypes []datastore.DataType `json:"data_types,omitempty"`
	Error     *ErrorBody           `json:"error,omitempty"`
}

// DescribeRequest asks for the metadata of one data ID.
type DescribeRequest struct {
	DataID string `json:"data_id"`
}

// DescribeResponse carries a data descriptor.
type DescribeResponse struct {
	Descriptor *datastore.DataDescriptor `json:"descriptor,omitempty"`
	Error      *ErrorBody                `json:"error,omitempty"`
}

// OpenRequest asks the store to open a dataset.
type OpenRequest struct {
	DataID string         `json:"data_id"`
	Params map[string]any `json:"params"`
}

// OpenResponse carries an opened dataset.
type OpenResponse struct {
	Dataset *datastore.Dataset `json:"dataset,omitempty"`
	Error   *ErrorBody         `json:"error,omitempty"`
}

// SearchRequest asks the store to search its catalog.
type SearchRequest struct {
	Params map[string]any `json:"params"`
}

// SearchResponse lists the matching descriptors.
type SearchResponse struct {
	Descriptors []*datastore.DataDescriptor `json:"descriptors,omitempty"`
	Error       *ErrorBody                  `json:"error,omitempty"`
}
