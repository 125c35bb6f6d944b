package main

import (
	"context"
	"errors"
	"fmt"

	"societyadmin"
	"societyadmin/societyapi"
)

func loadConfig(path string) (societyadmin.Config, error) {
	c, err := societyadmin.LoadConfig(path)
	if err != nil {
		return societyadmin.Config{}, err
	}

	if c.PostgresUrl == "" {
		return societyadmin.Config{}, errors.New("POSTGRES_URL is required")
	}

	return c, nil
}

// serviceClient returns a backend client for the daemon's own account. A configured
// SERVICE_TOKEN wins over the username and password.
func serviceClient(ctx context.Context, c societyadmin.Config) (societyapi.AuthorizedClient, error) {
	if err := c.Validate(); err != nil {
		return societyapi.AuthorizedClient{}, err
	}

	client, err := societyapi.NewClient(c.APIBaseURL)
	if err != nil {
		return societyapi.AuthorizedClient{}, fmt.Errorf("unable to create backend client: %w", err)
	}
	client.SetLogger(logger.Named("societyapi"))

	if c.ServiceToken != "" {
		return societyapi.NewAuthorizedClient(client, c.ServiceToken), nil
	}

	if c.ServiceUsername == "" || c.ServicePassword == "" {
		return societyapi.AuthorizedClient{}, errors.New("SERVICE_TOKEN or SERVICE_USERNAME and SERVICE_PASSWORD are required")
	}

	result, err := client.Login(ctx, c.ServiceUsername, c.ServicePassword)
	if err != nil {
		return societyapi.AuthorizedClient{}, err
	}

	return societyapi.NewAuthorizedClient(client, result.Token), nil
}
