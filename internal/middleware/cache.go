package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/resource-api/internal/config"
	"github.com/iliyamo/resource-api/internal/logging"
)

// captureWriter copies the response body while forwarding it to the client.
// It stops copying past limit and marks the capture as overflowed.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// generationKey holds the write counter of one resource.  Every cached
// read embeds the counter value it was computed under.
func generationKey(cfg config.ResponseCacheConfig, resource string) string {
	return cfg.Prefix + ":gen:" + resource
}

func responseKey(cfg config.ResponseCacheConfig, resource, gen string, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(c.Path() + "?" + r.URL.RawQuery + "#" + strings.Join(c.ParamValues(), "/")))
	return fmt.Sprintf("%s:%s:%s:%x", cfg.Prefix, resource, gen, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// NewResponseCache caches successful GET responses of one resource in Redis
// and drops them whenever a write to the same resource succeeds.  Mount it
// on every route of the resource.  It is a no-op when disabled or without
// Redis, and any Redis error falls through to the handler.
func NewResponseCache(cfg config.ResponseCacheConfig, rdb *redis.Client, resource string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	genKey := generationKey(cfg, resource)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if c.Request().Method != http.MethodGet {
				err := next(c)
				if err == nil && c.Response().Status < http.StatusMultipleChoices {
					if ierr := rdb.Incr(context.WithoutCancel(ctx), genKey).Err(); ierr != nil {
						logging.FromContext(ctx).Warn("response_cache_failed", "op", "invalidate", "resource", resource, "error", ierr)
					}
				}
				return err
			}

			gen, err := rdb.Get(ctx, genKey).Result()
			switch {
			case errors.Is(err, redis.Nil):
				gen = "0"
			case err != nil:
				return next(c)
			}
			key := responseKey(cfg, resource, gen, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderXRequestID)
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err == nil {
				err = rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err()
			}
			if err != nil {
				logging.FromContext(ctx).Warn("response_cache_failed", "op", "store", "resource", resource, "error", err)
			}
			return nil
		}
	}
}
