/*
Package config loads the settings of the docstore command.

Values are layered, later sources winning:

 1. built-in defaults (DefaultConfig)
 2. a YAML file, when a path is given
 3. a .env file in the working directory, when present
 4. DOCSTORE_* and AWS_* environment variables

Example docstore.yaml:

	backend: badger
	database: ToDoList
	container: Items
	partition_key_path: /id
	throughput: 400
	badger:
	  path: ./data
*/
package config
