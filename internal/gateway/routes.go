package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/spilink/internal/auth"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/observability"
	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (g *Gateway) registerRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(g.Appeared).String(),
			"service": g.ID,
			"version": "0.1.0",
		})
	})
	g.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g.router.GET("/streams", g.handleStreams)
	g.router.GET("/streams/:name/size", g.handleSize)
	g.router.GET("/streams/:name/data", g.handleData)
	g.router.GET("/streams/:name/metadata", g.handleMetadata)
	g.router.GET("/streams/:name/message", g.handleMessage)
	g.router.GET("/streams/:name/chunks", g.handleChunks)
	g.router.POST("/streams/:name/pop", auth.Require(g.popAuth), g.handlePop)
	g.router.POST("/pop", auth.Require(g.popAuth), g.handlePopAll)
}

func (g *Gateway) handleStreams(c *gin.Context) {
	streams, err := g.engine.GetStreams()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

// handleSize reports the data size, or the metadata size with ?kind=meta.
func (g *Gateway) handleSize(c *gin.Context) {
	stream := c.Param("name")
	cmd := messaging.GetSize
	switch c.DefaultQuery("kind", "data") {
	case "data":
	case "meta":
		cmd = messaging.GetMetaSize
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be data or meta"})
		return
	}
	size, err := g.engine.GetSize(cmd, stream)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": stream, "kind": c.DefaultQuery("kind", "data"), "size": size})
}

// handleData returns the head message body. ?offset=&size= reads a part.
func (g *Gateway) handleData(c *gin.Context) {
	stream := c.Param("name")
	var (
		data link.Data
		err  error
	)
	if c.Query("offset") != "" || c.Query("size") != "" {
		offset, perr := queryUint32(c, "offset")
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		size, perr := queryUint32(c, "size")
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		data, err = g.engine.ReqDataPartial(stream, offset, size)
	} else {
		data, err = g.engine.ReqData(stream)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(observability.OutcomeKey, link.Outcome(nil))
	c.Data(http.StatusOK, "application/octet-stream", data.Bytes)
}

func (g *Gateway) handleMetadata(c *gin.Context) {
	meta, err := g.engine.ReqMetadata(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metadataBody(meta))
}

func (g *Gateway) handleMessage(c *gin.Context) {
	msg, err := g.engine.ReqMessage(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stream":   msg.Data.Stream,
		"type":     msg.Type.String(),
		"size":     msg.Data.Size(),
		"data":     msg.Data.Bytes,
		"metadata": metadataBody(msg.Metadata),
	})
}

// handleChunks streams the body as it is reassembled. Once the first chunk
// is written, a later failure can only be logged and cut the response short.
func (g *Gateway) handleChunks(c *gin.Context) {
	stream := c.Param("name")
	started := false
	err := g.engine.ChunkMessage(stream, func(chunk []byte, messageSize uint32) {
		if !started {
			c.Header("Content-Type", "application/octet-stream")
			c.Header("Content-Length", strconv.FormatUint(uint64(messageSize), 10))
			c.Status(http.StatusOK)
			started = true
		}
		if _, err := c.Writer.Write(chunk); err != nil {
			log.Warn().Err(err).Str("stream", stream).Msg("gateway chunk write failed")
			return
		}
		c.Writer.Flush()
	})
	if err == nil && !started {
		c.Data(http.StatusOK, "application/octet-stream", nil)
		return
	}
	if err != nil {
		if started {
			c.Set(observability.OutcomeKey, link.Outcome(err))
			log.Error().Err(err).Str("stream", stream).Msg("gateway chunk stream aborted")
			c.Abort()
			return
		}
		respondError(c, err)
	}
}

func (g *Gateway) handlePop(c *gin.Context) {
	stream := c.Param("name")
	if err := g.engine.PopMessage(stream); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stream": stream})
}

func (g *Gateway) handlePopAll(c *gin.Context) {
	if err := g.engine.PopMessages(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func metadataBody(meta link.Metadata) gin.H {
	body := gin.H{
		"stream":  meta.Stream,
		"type":    meta.Type.String(),
		"type_id": int32(meta.Type),
		"size":    meta.Size(),
	}
	obj, err := meta.Decode()
	switch {
	case err == nil:
		body["object"] = obj
	case errors.Is(err, datatype.ErrUnknownType):
		body["raw"] = meta.Bytes
	default:
		body["decode_error"] = err.Error()
		body["raw"] = meta.Bytes
	}
	return body
}

func queryUint32(c *gin.Context, key string) (uint32, error) {
	v, err := strconv.ParseUint(c.Query(key), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, c.Query(key))
	}
	return uint32(v), nil
}
