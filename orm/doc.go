/*
Package orm provides an easy to use db wrapper.

Break state space into prefixed sections called Buckets.
  - Each bucket contains only one type of object.
  - It has a primary key, and may possess secondary indexes.
  - Easy queries for one, iteration over a key prefix and lookups by index.
*/
package orm
