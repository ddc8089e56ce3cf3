// Command plexnote announces new Plex library items on Discord.
//
// A single invocation handles one rating key (notify). The serve and watch
// commands keep running and feed the same pipeline from Tautulli webhooks or
// a recently-added poll.
package main
