package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

// dockerHostAlias is the name a container uses to reach its host.
const dockerHostAlias = "host.docker.internal"

// inDocker reports whether the process runs inside a Docker container.
var inDocker = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// containerHost maps a loopback host to dockerHostAlias when containerized.
// Empty and non-loopback hosts are returned unchanged.
func containerHost(host string, containerized bool) string {
	if !containerized || host == "" {
		return host
	}
	if host == "localhost" {
		return dockerHostAlias
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return dockerHostAlias
	}
	return host
}

// containerURL applies containerHost to the host part of rawURL.
func containerURL(rawURL string, containerized bool) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := containerHost(u.Hostname(), containerized)
	if host == u.Hostname() {
		return rawURL
	}
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(host, port)
	}
	u.Host = host
	return u.String()
}

// resolveServiceHosts points Postgres, Redis and the oracle at the Docker
// host when the configured address is loopback and we run in a container.
func (c *Config) resolveServiceHosts() {
	c.applyContainerHosts(inDocker())
}

func (c *Config) applyContainerHosts(containerized bool) {
	c.Database.Host = containerHost(c.Database.Host, containerized)
	c.Redis.Host = containerHost(c.Redis.Host, containerized)
	c.Oracle.BaseURL = containerURL(c.Oracle.BaseURL, containerized)
}
