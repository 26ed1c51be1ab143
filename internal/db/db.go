package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and brings the schema up to date.
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	ensureUsersTable()
	ensureServicesTable()
	ensureJobsTable()
	ensureContractsTables()
	ensureChatTables()
	ensureJobApplicationsTable()
	ensureTransactionsTable()
	ensureNotificationsTable()
}

func ensureUsersTable() {
	exec("users", `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            full_name TEXT NOT NULL,
            password TEXT NOT NULL,
            user_type TEXT NOT NULL CHECK (user_type IN ('buyer','seller')),
            email TEXT NULL UNIQUE,
            balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
            bio TEXT NULL,
            avatar_url TEXT NULL,
            language TEXT NULL,
            music_data JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
}

func ensureServicesTable() {
	exec("services", `
        CREATE TABLE IF NOT EXISTS services (
            id UUID PRIMARY KEY,
            seller_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            price BIGINT NOT NULL CHECK (price > 0),
            currency TEXT NOT NULL DEFAULT 'USD',
            tags TEXT[] NOT NULL DEFAULT '{}',
            images TEXT[] NOT NULL DEFAULT '{}',
            additional_services JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_services_seller ON services(seller_id);
    `)
}

func ensureJobsTable() {
	exec("jobs", `
        CREATE TABLE IF NOT EXISTS jobs (
            id UUID PRIMARY KEY,
            buyer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT NULL,
            budget BIGINT NOT NULL CHECK (budget > 0),
            status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','in_progress','completed')),
            currency TEXT NOT NULL DEFAULT 'USD',
            skill_levels TEXT[] NOT NULL DEFAULT '{}',
            files TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_jobs_buyer ON jobs(buyer_id);
        CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
    `)
}

func ensureContractsTables() {
	exec("contracts", `
        CREATE TABLE IF NOT EXISTS contracts (
            id UUID PRIMARY KEY,
            buyer_id UUID NOT NULL REFERENCES users(id),
            seller_id UUID NOT NULL REFERENCES users(id),
            job_id UUID NULL REFERENCES jobs(id),
            service_id UUID NULL REFERENCES services(id),
            title TEXT NULL,
            contract_type TEXT NOT NULL CHECK (contract_type IN ('one-time','installment')),
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','accepted','rejected','completed')),
            amount BIGINT NOT NULL CHECK (amount > 0),
            description TEXT NOT NULL DEFAULT '',
            attachments TEXT[] NOT NULL DEFAULT '{}',
            currency TEXT NOT NULL DEFAULT 'USD',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            CHECK ((job_id IS NULL) <> (service_id IS NULL))
        );
        CREATE UNIQUE INDEX IF NOT EXISTS uniq_contracts_active_job
            ON contracts(job_id) WHERE job_id IS NOT NULL AND status <> 'rejected';
        CREATE INDEX IF NOT EXISTS idx_contracts_buyer ON contracts(buyer_id);
        CREATE INDEX IF NOT EXISTS idx_contracts_seller ON contracts(seller_id);
    `)

	exec("contract_milestones", `
        CREATE TABLE IF NOT EXISTS contract_milestones (
            id UUID PRIMARY KEY,
            contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
            description TEXT NOT NULL DEFAULT '',
            due_date TIMESTAMP WITH TIME ZONE NULL,
            amount BIGINT NOT NULL CHECK (amount > 0),
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected','paid')),
            sequence INT NOT NULL DEFAULT 1,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_milestones_contract ON contract_milestones(contract_id, sequence, created_at);
    `)
}

func ensureChatTables() {
	exec("chats", `
        CREATE TABLE IF NOT EXISTS chats (
            id UUID PRIMARY KEY,
            buyer_id UUID NOT NULL REFERENCES users(id),
            seller_id UUID NOT NULL REFERENCES users(id),
            contract_id UUID NULL REFERENCES contracts(id) ON DELETE CASCADE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE UNIQUE INDEX IF NOT EXISTS uniq_chats_direct
            ON chats(buyer_id, seller_id) WHERE contract_id IS NULL;
        CREATE UNIQUE INDEX IF NOT EXISTS uniq_chats_contract
            ON chats(buyer_id, seller_id, contract_id) WHERE contract_id IS NOT NULL;
    `)

	exec("messages", `
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(id),
            content TEXT NULL,
            message_type TEXT NOT NULL CHECK (message_type IN (
                'text','image','offer','milestone','system_event',
                'milestone_activated','milestone_completed','audio','file','hire_request'
            )),
            data JSONB NULL,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_messages_chat_unread ON messages(chat_id) WHERE read = FALSE;
    `)
}

func ensureJobApplicationsTable() {
	exec("job_applications", `
        CREATE TABLE IF NOT EXISTS job_applications (
            id UUID PRIMARY KEY,
            job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
            seller_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','accepted','rejected')),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (job_id, seller_id)
        )`)
}

func ensureTransactionsTable() {
	exec("transactions", `
        CREATE TABLE IF NOT EXISTS transactions (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            amount BIGINT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('debit','credit')),
            status TEXT NOT NULL,
            reference UUID NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at);
    `)
}

func ensureNotificationsTable() {
	exec("notifications", `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            reference UUID NULL,
            metadata JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
}

func exec(name, ddl string) {
	if _, err := Conn.Exec(context.Background(), ddl); err != nil {
		log.Printf("failed to ensure %s schema: %v", name, err)
	}
}
