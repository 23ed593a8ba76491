package config

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	Server   string `env:"DB_SERVER" envDefault:"localhost"`
	Database string `env:"DB_NAME" envDefault:"ligchat"`
	User     string `env:"DB_USER" envDefault:"ligchat"`
	Password string `env:"DB_PASSWORD"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&multiStatements=true&loc=America%%2FManaus&time_zone='-04:00'",
		c.User, c.Password, c.Server, c.Database)
}

func ConnectDatabase(config *DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", config.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Configurar o pool de conexões
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Testar a conexão
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	return db, nil
}
