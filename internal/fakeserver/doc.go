// Package fakeserver is an in-memory stand-in for the tutoring platform's
// chat service. It implements the REST endpoints under /api and the
// real-time channel under /ws, and exposes hooks tests use to inject
// failures, push messages and drop connections.
//
//	srv := fakeserver.New(fakeserver.Options{})
//	ada := srv.AddUser("Ada Lovelace", "ada@example.com")
//	token, _ := srv.IssueToken(ada.ID, time.Hour)
//	ts := httptest.NewServer(srv.Handler())
//
// The service relays chat:message frames to the other members of the
// room. With Options.EchoToSender it also echoes the frame back to the
// sender, which is how some deployments behave.
package fakeserver
