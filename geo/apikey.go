// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

const (
	// APIKeyEnv holds an explicit Google Maps API key.
	APIKeyEnv = "GOOGLE_MAPS_API_KEY"
	// ProjectEnv names the Google Cloud project when the credentials carry none.
	ProjectEnv = "GOOGLE_CLOUD_PROJECT"
	// KeyDisplayName is the display name of the key looked up through ADC.
	KeyDisplayName = "Corridor Maps Key"
)

// ResolveAPIKey returns the Maps API key from GOOGLE_MAPS_API_KEY or, when
// unset, from the project's API Keys service using Application Default
// Credentials.
func ResolveAPIKey(ctx context.Context) (string, error) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}

	return apiKeyFromADC(ctx)
}

func apiKeyFromADC(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		projectID = os.Getenv(ProjectEnv)
	}

	if projectID == "" {
		return "", fmt.Errorf("no project in default credentials; set %s or %s", ProjectEnv, APIKeyEnv)
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.GetDisplayName() != KeyDisplayName {
			continue
		}

		// ListKeys redacts the secret
		log.Printf("geo: found key resource %q, retrieving secret", key.GetName())

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.GetName()})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.GetKeyString() == "" {
			return "", fmt.Errorf("key %q has an empty key string", KeyDisplayName)
		}

		return resp.GetKeyString(), nil
	}

	return "", fmt.Errorf("key with display name %q not found in project %s", KeyDisplayName, projectID)
}
