package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		require.Equal(t, "/v1/portals/USDC/stake", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"stakedBalance": body["amount"]})
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL+"/", "abc", 0)
	payload, err := client.do(context.Background(), http.MethodPost, "v1/portals/USDC/stake", map[string]string{"amount": "42"})
	require.NoError(t, err)
	require.JSONEq(t, `{"stakedBalance":"42"}`, string(payload))
}

func TestClientDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"portal engine: amount exceeds available to withdraw","kind":"InsufficientToWithdraw"}`))
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL, "", 0).do(context.Background(), http.MethodGet, "/v1/liquidity", nil)
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, "InsufficientToWithdraw", apiErr.Kind)
}
