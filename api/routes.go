package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jacentio/grove/tree"
)

// route dispatches a request and returns the status and response body.
func (h *Handler) route(ctx context.Context, r *request) (int, any, error) {
	switch r.method {
	case http.MethodGet:
		return h.routeGet(ctx, r)
	case http.MethodPost:
		return h.routePost(ctx, r)
	}
	return 0, nil, fmt.Errorf("%w: method %s not allowed", tree.ErrInvalidArgument, r.method)
}

func (h *Handler) routeGet(ctx context.Context, r *request) (int, any, error) {
	p := r.path
	switch {
	case len(p) == 1 && p[0] == "namespaces":
		out, err := h.svc.ListNamespaces(ctx, r.owner)
		return http.StatusOK, out, err
	case len(p) == 2 && p[0] == "namespaces":
		out, err := h.svc.GetNamespace(ctx, r.owner, p[1])
		return http.StatusOK, out, err
	case len(p) == 2 && p[0] == "nodes":
		out, err := h.svc.Get(ctx, r.owner, p[1])
		return http.StatusOK, out, err
	case len(p) == 3 && p[0] == "nodes" && p[2] == "children":
		out, err := h.svc.List(ctx, r.owner, p[1])
		return http.StatusOK, out, err
	case len(p) == 3 && p[0] == "nodes" && p[2] == "ancestors":
		out, err := h.svc.Ancestors(ctx, r.owner, p[1])
		return http.StatusOK, out, err
	case len(p) == 3 && p[0] == "nodes" && p[2] == "verify":
		out, err := h.svc.Verify(ctx, r.owner, p[1])
		return http.StatusOK, out, err
	}
	return 0, nil, notFound(r)
}

func (h *Handler) routePost(ctx context.Context, r *request) (int, any, error) {
	switch joinPath(r.path) {
	case "namespaces":
		var in tree.CreateNamespaceInput
		return call(r, &in, http.StatusCreated, func() (any, error) {
			return h.svc.CreateNamespace(ctx, r.owner, in)
		})
	case "namespaces/rename":
		var in tree.RenameNamespaceInput
		return call(r, &in, http.StatusOK, func() (any, error) {
			return h.svc.RenameNamespace(ctx, r.owner, in)
		})
	case "namespaces/delete":
		var in tree.DeleteNamespaceInput
		return call(r, &in, http.StatusNoContent, func() (any, error) {
			return nil, h.svc.DeleteNamespace(ctx, r.owner, in)
		})
	case "folders":
		var in tree.CreateDirectoryInput
		return call(r, &in, http.StatusCreated, func() (any, error) {
			return h.svc.CreateDirectory(ctx, r.owner, in)
		})
	case "folders/rename", "files/rename", "nodes/rename":
		var in tree.RenameInput
		return call(r, &in, http.StatusOK, func() (any, error) {
			return h.svc.Rename(ctx, r.owner, in)
		})
	case "folders/move":
		var in tree.MoveInput
		return call(r, &in, http.StatusOK, func() (any, error) {
			return h.svc.MoveDirectory(ctx, r.owner, in)
		})
	case "folders/delete":
		var in tree.DeleteInput
		return call(r, &in, http.StatusNoContent, func() (any, error) {
			return nil, h.svc.DeleteDirectory(ctx, r.owner, in)
		})
	case "files":
		var in tree.CreateFileInput
		return call(r, &in, http.StatusCreated, func() (any, error) {
			return h.svc.CreateFile(ctx, r.owner, in)
		})
	case "files/delete":
		var in tree.DeleteInput
		return call(r, &in, http.StatusNoContent, func() (any, error) {
			return nil, h.svc.DeleteFile(ctx, r.owner, in)
		})
	case "files/status":
		var in tree.SetFileStatusInput
		return call(r, &in, http.StatusOK, func() (any, error) {
			return h.svc.SetFileStatus(ctx, r.owner, in)
		})
	case "nodes/delete":
		var in tree.DeleteInput
		return call(r, &in, http.StatusNoContent, func() (any, error) {
			return nil, h.svc.Delete(ctx, r.owner, in)
		})
	}
	return 0, nil, notFound(r)
}

// call decodes the body into in and runs fn.
func call(r *request, in any, status int, fn func() (any, error)) (int, any, error) {
	if err := r.decode(in); err != nil {
		return 0, nil, err
	}
	out, err := fn()
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusNoContent {
		return status, nil, nil
	}
	return status, out, nil
}

func joinPath(p []string) string {
	return strings.Join(p, "/")
}

func notFound(r *request) error {
	return fmt.Errorf("%w: no route for %s /%s", tree.ErrNotFound, r.method, joinPath(r.path))
}
