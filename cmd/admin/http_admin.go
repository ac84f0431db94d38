package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type target struct {
	baseURL   *string
	world     *string
	dimension *string
}

func regionFlags(fs *flag.FlagSet) target {
	return target{
		baseURL:   fs.String("url", "http://127.0.0.1:8080", "server base url"),
		world:     fs.String("world", "world_1", "world id"),
		dimension: fs.String("dimension", "overworld", "dimension"),
	}
}

func (t target) endpoint(path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(*t.baseURL), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (t target) query(extra url.Values) url.Values {
	q := url.Values{"world": {*t.world}, "dimension": {*t.dimension}}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

// call prints the response body and exits non-zero on a non-2xx status.
func call(method, u string, body any) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fail("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fail("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fail("request: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Print(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	t := regionFlags(fs)
	_ = fs.Parse(args)
	call(http.MethodGet, t.endpoint("/admin/v1/stats", nil), nil)
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	t := regionFlags(fs)
	area := fs.String("area", "", "minX,minY,minZ,maxX,maxY,maxZ (optional)")
	_ = fs.Parse(args)
	extra := url.Values{}
	if *area != "" {
		extra.Set("area", *area)
	}
	call(http.MethodGet, t.endpoint("/admin/v1/barriers", t.query(extra)), nil)
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	t := regionFlags(fs)
	id := fs.String("id", "", "barrier id")
	_ = fs.Parse(args)
	call(http.MethodGet, t.endpoint("/admin/v1/barriers/info", t.query(url.Values{"id": {*id}})), nil)
}

func removeCmd(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	t := regionFlags(fs)
	id := fs.String("id", "", "barrier id")
	area := fs.String("area", "", "remove every barrier overlapping minX,minY,minZ,maxX,maxY,maxZ")
	all := fs.Bool("all", false, "remove every barrier in the region")
	_ = fs.Parse(args)

	extra := url.Values{}
	switch {
	case *id != "":
		extra.Set("id", *id)
	case *area != "":
		extra.Set("area", *area)
	case *all:
		extra.Set("all", "true")
	default:
		fmt.Fprintln(os.Stderr, "one of -id, -area or -all is required")
		os.Exit(2)
	}
	call(http.MethodDelete, t.endpoint("/admin/v1/barriers", t.query(extra)), nil)
}

func conjureCmd(args []string) {
	fs := flag.NewFlagSet("conjure", flag.ExitOnError)
	t := regionFlags(fs)
	center := fs.String("center", "", "x,y,z")
	size := fs.String("size", "", "width,height,depth")
	yaw := fs.Float64("yaw", 0, "yaw in degrees")
	pitch := fs.Float64("pitch", 0, "pitch in degrees")
	precision := fs.Float64("precision", 1, "voxel edge length")
	lifetime := fs.Uint64("lifetime_ticks", 0, "ticks until expiry (0 = server default)")
	_ = fs.Parse(args)

	c, err := parseFloats(*center, 3)
	if err != nil {
		fail("-center: %v", err)
	}
	sz, err := parseFloats(*size, 3)
	if err != nil {
		fail("-size: %v", err)
	}
	call(http.MethodPost, t.endpoint("/admin/v1/barriers/conjure", nil), map[string]any{
		"world_id":       *t.world,
		"dimension":      *t.dimension,
		"center":         c,
		"width":          sz[0],
		"height":         sz[1],
		"depth":          sz[2],
		"yaw":            *yaw,
		"pitch":          *pitch,
		"precision":      *precision,
		"lifetime_ticks": *lifetime,
	})
}

// testCmd probes the ray intersector, or the compositor when -area is set.
func testCmd(args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	t := regionFlags(fs)
	from := fs.String("from", "", "x,y,z")
	to := fs.String("to", "", "x,y,z")
	area := fs.String("area", "", "minX,minY,minZ,maxX,maxY,maxZ")
	_ = fs.Parse(args)

	if *area != "" {
		a, err := parseFloats(*area, 6)
		if err != nil {
			fail("-area: %v", err)
		}
		call(http.MethodPost, t.endpoint("/admin/v1/probe/collisions", nil), map[string]any{
			"world_id": *t.world, "dimension": *t.dimension, "area": a,
		})
		return
	}
	f, err := parseFloats(*from, 3)
	if err != nil {
		fail("-from: %v", err)
	}
	e, err := parseFloats(*to, 3)
	if err != nil {
		fail("-to: %v", err)
	}
	call(http.MethodPost, t.endpoint("/admin/v1/probe/clip", nil), map[string]any{
		"world_id": *t.world, "dimension": *t.dimension, "from": f, "to": e,
	})
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	t := regionFlags(fs)
	id := fs.String("id", "", "barrier id")
	_ = fs.Parse(args)
	call(http.MethodGet, t.endpoint("/admin/v1/history", url.Values{"id": {*id}}), nil)
}
