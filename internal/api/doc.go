// Package api implements the HTTP handlers for the StreamNest backend:
// account and session endpoints, video and playlist management, comments,
// likes, subscriptions, and watch history.
package api
