package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/fixture"
)

type fetcherStub map[string]domain.RawItem

func (f fetcherStub) FetchSubmission(_ context.Context, id string) (domain.RawItem, error) {
	item, ok := f[id]
	if !ok {
		return domain.RawItem{}, errors.New("not found")
	}
	return item, nil
}

func stubExtract(t *testing.T, f submissionFetcher) {
	t.Helper()
	origEnv, origCreds, origFetcher, origErr := loadEnvFunc, credentialsFunc, newFetcherFunc, stderr
	t.Cleanup(func() {
		loadEnvFunc, credentialsFunc, newFetcherFunc, stderr = origEnv, origCreds, origFetcher, origErr
	})
	stderr = &bytes.Buffer{}
	loadEnvFunc = func(...string) error { return nil }
	credentialsFunc = func() (config.Credentials, error) { return config.Credentials{ClientID: "id"}, nil }
	newFetcherFunc = func(context.Context, config.Credentials) submissionFetcher { return f }
}

func TestRunWritesFixtures(t *testing.T) {
	dir := t.TempDir()
	stubExtract(t, fetcherStub{
		"abc123": {NativeID: "abc123", Title: "BTC to the moon", Body: "bitcoin", IsSelf: true, Channel: "CryptoCurrency", Author: "satoshi"},
	})

	if code := run([]string{"-out", dir, "abc123"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	s, err := fixture.Load(filepath.Join(dir, "abc123.yaml"))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if s.Title != "BTC to the moon" || s.Subreddit != "CryptoCurrency" || s.Author == nil || *s.Author != "satoshi" {
		t.Fatalf("unexpected fixture: %+v", s)
	}
}

func TestRunReportsFailedIDs(t *testing.T) {
	dir := t.TempDir()
	stubExtract(t, fetcherStub{"ok1": {NativeID: "ok1", Title: "fine"}})

	if code := run([]string{"-out", dir, "ok1", "missing"}); code != 1 {
		t.Fatalf("expected exit 1 when an id fails, got %d", code)
	}
	if _, err := fixture.Load(filepath.Join(dir, "ok1.yaml")); err != nil {
		t.Fatalf("successful id should still be written: %v", err)
	}
}

func TestRunRequiresIDs(t *testing.T) {
	stubExtract(t, fetcherStub{})
	if code := run(nil); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
}

func TestRunMissingCredentials(t *testing.T) {
	stubExtract(t, fetcherStub{})
	credentialsFunc = func() (config.Credentials, error) { return config.Credentials{}, errors.New("missing") }
	if code := run([]string{"abc"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
