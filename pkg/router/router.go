// Package router dispatches fasthttp requests on method and path pattern.
//
// Patterns are slash separated; a segment written {name} captures the
// request segment into the ctx user value "name". Routes are tried in
// registration order, so register literal routes before overlapping
// parameterised ones.
package router

import (
	"sort"
	"strings"

	"github.com/valyala/fasthttp"
)

type Router struct {
	routes   []route
	notFound fasthttp.RequestHandler
}

type route struct {
	method  string
	pattern []string // "{name}" entries are captures
	handler fasthttp.RequestHandler
}

func New() *Router {
	return &Router{}
}

// Handle registers h for method and path.
func (r *Router) Handle(method, path string, h fasthttp.RequestHandler) {
	r.routes = append(r.routes, route{method: method, pattern: split(path), handler: h})
}

func (r *Router) GET(path string, h fasthttp.RequestHandler)    { r.Handle(fasthttp.MethodGet, path, h) }
func (r *Router) POST(path string, h fasthttp.RequestHandler)   { r.Handle(fasthttp.MethodPost, path, h) }
func (r *Router) PUT(path string, h fasthttp.RequestHandler)    { r.Handle(fasthttp.MethodPut, path, h) }
func (r *Router) PATCH(path string, h fasthttp.RequestHandler)  { r.Handle(fasthttp.MethodPatch, path, h) }
func (r *Router) DELETE(path string, h fasthttp.RequestHandler) { r.Handle(fasthttp.MethodDelete, path, h) }

// NotFound replaces the default bare 404.
func (r *Router) NotFound(h fasthttp.RequestHandler) {
	r.notFound = h
}

// Handler is the fasthttp entry point. A path registered only under other
// methods answers 405 with an Allow header.
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	parts := split(string(ctx.Path()))

	var allow []string
	for i := range r.routes {
		rt := &r.routes[i]
		if !matches(rt.pattern, parts) {
			continue
		}
		if rt.method != method {
			allow = append(allow, rt.method)
			continue
		}
		for j, seg := range rt.pattern {
			if name, ok := capture(seg); ok {
				ctx.SetUserValue(name, parts[j])
			}
		}
		rt.handler(ctx)
		return
	}

	if len(allow) > 0 {
		sort.Strings(allow)
		ctx.Response.Header.Set("Allow", strings.Join(dedupe(allow), ", "))
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	if r.notFound != nil {
		r.notFound(ctx)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
}

func split(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

func capture(seg string) (string, bool) {
	if len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

func matches(pattern, parts []string) bool {
	if len(pattern) != len(parts) {
		return false
	}
	for i, seg := range pattern {
		if _, ok := capture(seg); ok {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if seg != parts[i] {
			return false
		}
	}
	return true
}

// dedupe drops repeats from a sorted slice.
func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
