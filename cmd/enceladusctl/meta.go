package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"enceladus/pkg/api/routes"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

func newMetaCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Print the server's version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := fetchMeta(baseURL, 5*time.Second)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version:    %s\nmajor:      %d\nrepository: %s\n", m.Version, m.VersionMajor, m.Repository)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:3000", "REST base url")
	return cmd
}

func fetchMeta(baseURL string, timeout time.Duration) (routes.Meta, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(baseURL, "/") + "/meta")
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return routes.Meta{}, errors.Wrap(err, "request /meta")
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return routes.Meta{}, errors.Newf("/meta returned %d: %s", resp.StatusCode(), resp.Body())
	}
	var m routes.Meta
	if err := json.Unmarshal(resp.Body(), &m); err != nil {
		return routes.Meta{}, errors.Wrap(err, "decode /meta")
	}
	return m, nil
}
