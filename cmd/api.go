package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the backend
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: request path", shared.ErrMissingArgument)
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	r.logger.Debug("GET request", "path", path)

	resp, err := c.Gateway().API().Get(ctx, path)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}
	return r.writeResponse(resp.IsJSON, resp.JSONData, resp.Body, cmd.Bool("pretty"))
}

// APIPost makes a direct POST request to the backend
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")

	if path == "" {
		return fmt.Errorf("%w: request path", shared.ErrMissingArgument)
	}
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	r.logger.Debug("POST request", "path", path)

	resp, err := c.Gateway().API().Post(ctx, path, []byte(data))
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}
	return r.writeResponse(resp.IsJSON, resp.JSONData, resp.Body, true)
}

// APIHealth prints the backend health endpoint.
func (r *Runner) APIHealth(ctx context.Context, cmd *cli.Command) error {
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	health, err := c.Gateway().Health(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	r.writePlain("✓ Backend is %s\n", health.Status)
	if health.Message != "" {
		r.writePlain("%s\n", health.Message)
	}
	return nil
}

func (r *Runner) writeResponse(isJSON bool, decoded any, body []byte, pretty bool) error {
	if isJSON {
		return r.writeJSON(decoded, pretty)
	}
	if _, err := r.output.Write(body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return r.writePlain("\n")
}

// apiCommand handles direct backend API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the backend API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:   "health",
				Usage:  "Check the backend health endpoint",
				Action: r.APIHealth,
			},
		},
	}
}
