package elevation

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// lookupResponse is the JSON response of an OpenTopoData query.
type lookupResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup queries the service in batches and stitches the results back
// together in input order.
func (c *client) Lookup(ctx context.Context, pts []Point) ([]float64, error) {
	if len(pts) == 0 {
		return nil, nil
	}
	out := make([]float64, 0, len(pts))
	for start := 0; start < len(pts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(pts) {
			end = len(pts)
		}
		batch, err := c.lookupBatch(ctx, pts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *client) lookupBatch(ctx context.Context, pts []Point) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "elevation: rate limit")
	}

	var locs strings.Builder
	for i, p := range pts {
		if i > 0 {
			locs.WriteByte('|')
		}
		locs.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
		locs.WriteByte(',')
		locs.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
	}
	params := url.Values{"locations": {locs.String()}}
	reqURL := strings.TrimRight(c.baseURL, "/") + "/v1/" + c.dataset + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("elevation: service returned status %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(err, "elevation: parse response")
	}
	if lr.Status != "OK" {
		return nil, eris.Errorf("elevation: service status %s: %s", lr.Status, lr.Error)
	}
	if len(lr.Results) != len(pts) {
		return nil, eris.Errorf("elevation: got %d results for %d points", len(lr.Results), len(pts))
	}

	zs := make([]float64, len(lr.Results))
	for i, r := range lr.Results {
		if r.Elevation == nil {
			zs[i] = math.NaN()
			continue
		}
		zs[i] = *r.Elevation
	}
	return zs, nil
}
