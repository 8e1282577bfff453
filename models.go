// this file defines the data structures used by the HTTP layer
package main

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/himanshub16/upnext-jukebox/jukebox"
)

// User is whoever logged in. The jukebox keeps no accounts, so this only
// lives inside the token.
type User struct {
	UserID   string `json:"user_id" form:"user_id"`
	Username string `json:"username" form:"username"`
}

func (u User) Requester() jukebox.Requester {
	return jukebox.Requester{ID: u.UserID, Name: u.Username}
}

func (u User) claims(ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":  u.UserID,
		"username": u.Username,
		"exp":      time.Now().Add(ttl).Unix(),
	}
}

var errBadToken = errors.New("token carries no user")

func userFromToken(token *jwt.Token) (User, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, errBadToken
	}
	id, _ := claims["user_id"].(string)
	if id == "" {
		return User{}, errBadToken
	}
	name, _ := claims["username"].(string)
	return User{UserID: id, Username: name}, nil
}
