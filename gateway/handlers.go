package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// handleCatalog replies with the store's data IDs and types.
func (g *Gateway) handleCatalog(ctx context.Context, _ []byte) ([]byte, error) {
	start := time.Now()

	ids, err := g.store.DataIDs(ctx)
	if err != nil {
		g.observe(OpCatalog, "error", start)
		return marshalReply(CatalogResponse{Error: newErrorBody(err)})
	}

	g.observe(OpCatalog, "ok", start)
	return marshalReply(CatalogResponse{
		DataIDs:   ids,
		DataTypes: g.store.DataTypes(),
	})
}

// handleDescribe replies with the descriptor for one data ID, consulting
// the shared KV cache before the store.
func (g *Gateway) handleDescribe(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	var request DescribeRequest
	if err := json.Unmarshal(data, &request); err != nil {
		g.observe(OpDescribe, "invalid", start)
		return marshalReply(DescribeResponse{Error: newErrorBody(
			errors.WrapInvalid(err, "Gateway", "handleDescribe", "request decoding"))})
	}

	if cached := g.cachedDescriptor(ctx, request.DataID); cached != nil {
		g.observe(OpDescribe, "ok", start)
		return cached, nil
	}

	descriptor, err := g.store.DescribeData(ctx, request.DataID)
	if err != nil {
		g.observe(OpDescribe, errorStatus(err), start)
		return marshalReply(DescribeResponse{Error: newErrorBody(err)})
	}

	reply, err := marshalReply(DescribeResponse{Descriptor: descriptor})
	if err != nil {
		g.observe(OpDescribe, "error", start)
		return nil, err
	}

	g.cacheDescriptor(ctx, request.DataID, reply)
	g.observe(OpDescribe, "ok", start)
	return reply, nil
}

// handleOpen opens a dataset and replies with its full content.
func (g *Gateway) handleOpen(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	var request OpenRequest
	if err := json.Unmarshal(data, &request); err != nil {
		g.observe(OpOpen, "invalid", start)
		return marshalReply(OpenResponse{Error: newErrorBody(
			errors.WrapInvalid(err, "Gateway", "handleOpen", "request decoding"))})
	}

	dataset, err := g.store.OpenData(ctx, request.DataID, request.Params)
	if err != nil {
		g.observe(OpOpen, errorStatus(err), start)
		return marshalReply(OpenResponse{Error: newErrorBody(err)})
	}

	g.observe(OpOpen, "ok", start)
	return marshalReply(OpenResponse{Dataset: dataset})
}

// handleSearch runs a catalog search and replies with the matches.
func (g *Gateway) handleSearch(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	var request SearchRequest
	if err := json.Unmarshal(data, &request); err != nil {
		g.observe(OpSearch, "invalid", start)
		return marshalReply(SearchResponse{Error: newErrorBody(
			errors.WrapInvalid(err, "Gateway", "handleSearch", "request decoding"))})
	}

	descriptors, err := g.store.SearchData(ctx, request.Params)
	if err != nil {
		g.observe(OpSearch, errorStatus(err), start)
		return marshalReply(SearchResponse{Error: newErrorBody(err)})
	}

	g.observe(OpSearch, "ok", start)
	return marshalReply(SearchResponse{Descriptors: descriptors})
}

// cachedDescriptor returns the cached describe reply for a data ID, or
// nil on a miss. Cache failures are treated as misses.
func (g *Gateway) cachedDescriptor(ctx context.Context, dataID string) []byte {
	if g.cache == nil || dataID == "" {
		return nil
	}
	reply, err := g.cache.Get(ctx, dataID)
	if err != nil {
		return nil
	}
	return reply
}

// cacheDescriptor stores a describe reply for a data ID.
func (g *Gateway) cacheDescriptor(ctx context.Context, dataID string, reply []byte) {
	if g.cache == nil || dataID == "" {
		return
	}
	if err := g.cache.Put(ctx, dataID, reply); err != nil {
		g.logger.Warn("failed to cache descriptor", "data_id", dataID, "error", err)
	}
}

// errorStatus maps an error class to a metric status label.
func errorStatus(err error) string {
	if errors.IsInvalid(err) {
		return "invalid"
	}
	return "error"
}

func marshalReply(response any) ([]byte, error) {
	reply, err := json.Marshal(response)
	if err != nil {
		return nil, errors.Wrap(err, "Gateway", "marshalReply", "response encoding")
	}
	return reply, nil
}
