// Package redis provides the Redis client and the schedule lock that keeps
// scheduled jobs to one replica per firing.
package redis
